package model

import "time"

// Transaction statuses.
const (
    TransactionSuccess        = "SUCCESS"
    TransactionFailed         = "FAILED"
    TransactionRefundRequired = "REFUND_REQUIRED"
)

// Transaction is the append-only audit record of one payment attempt,
// successful or not. Metadata carries the gateway's raw response fields.
type Transaction struct {
    ID         string            `json:"id"`
    TicketID   string            `json:"ticket_id"`
    EventID    string            `json:"event_id"`
    BuyerID    string            `json:"buyer_id"`
    Gateway    string            `json:"gateway"`
    PaymentRef string            `json:"payment_ref,omitempty"`
    Amount     int64             `json:"amount"`
    Currency   string            `json:"currency"`
    Status     string            `json:"status"`
    Reason     string            `json:"reason,omitempty"`
    Metadata   map[string]string `json:"metadata,omitempty"`
    CreatedAt  time.Time         `json:"created_at"`
}
