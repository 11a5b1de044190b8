package model

import "time"

// Order is the immutable record of a paid purchase. Amounts are in minor
// currency units.
//
// Fields:
//  ID            – order identifier.
//  TicketID      – ticket issued for the order.
//  TransactionID – successful payment transaction.
//  BuyerID/Name/Email – purchaser snapshot.
//  EventID, Category, Phase – what was bought.
//  Quantity      – number of admissions.
//  UnitPrice     – price of one admission.
//  Subtotal, Tax, Fee, Total – price breakdown.
//  Currency      – ISO currency code charged.
//  PaymentRef    – payment gateway reference.
//  CreatedAt     – creation timestamp.
type Order struct {
    ID            string    `json:"id"`
    TicketID      string    `json:"ticket_id"`
    TransactionID string    `json:"transaction_id"`
    BuyerID       string    `json:"buyer_id"`
    BuyerName     string    `json:"buyer_name"`
    BuyerEmail    string    `json:"buyer_email,omitempty"`
    EventID       string    `json:"event_id"`
    Category      string    `json:"category"`
    Phase         string    `json:"phase,omitempty"`
    Quantity      int       `json:"quantity"`
    UnitPrice     int64     `json:"unit_price"`
    Subtotal      int64     `json:"subtotal"`
    Tax           int64     `json:"tax"`
    Fee           int64     `json:"fee"`
    Total         int64     `json:"total"`
    Currency      string    `json:"currency"`
    PaymentRef    string    `json:"payment_ref"`
    CreatedAt     time.Time `json:"created_at"`
}

// PriceBreakdown is the computed price of a reservation in minor units.
type PriceBreakdown struct {
    UnitPrice int64 `json:"unit_price"`
    Subtotal  int64 `json:"subtotal"`
    Tax       int64 `json:"tax"`
    Fee       int64 `json:"fee"`
    Total     int64 `json:"total"`
}
