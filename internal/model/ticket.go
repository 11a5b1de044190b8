package model

import "time"

// Ticket is the user-facing artifact of an order; one ticket aggregates
// the whole order quantity. Its QR image encodes only ID, so validating a
// ticket at the door is a lookup.
type Ticket struct {
    ID            string     `json:"id"`
    OrderID       string     `json:"order_id"`
    EventID       string     `json:"event_id"`
    EventName     string     `json:"event_name"`
    EventSubName  string     `json:"event_sub_name,omitempty"`
    EventDate     string     `json:"event_date"`
    EventTime     string     `json:"event_time"`
    EventLocation string     `json:"event_location"`
    BuyerID       string     `json:"buyer_id"`
    BuyerName     string     `json:"buyer_name"`
    Category      string     `json:"category"`
    Phase         string     `json:"phase,omitempty"`
    Quantity      int        `json:"quantity"`
    UnitPrice     int64      `json:"unit_price"`
    AmountPaid    int64      `json:"amount_paid"`
    Currency      string     `json:"currency"`
    QRKey         string     `json:"qr_key"`
    QRURL         string     `json:"qr_url"`
    CheckedIn     bool       `json:"checked_in"`
    CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
    CreatedAt     time.Time  `json:"created_at"`
}
