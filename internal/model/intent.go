package model

import "time"

// Purchase intent statuses. An intent moves PENDING -> COMPLETE on a
// committed ledger write, PENDING -> FAILED when the write is known to have
// failed, and PENDING -> ABANDONED when the reconciler finds it stuck.
const (
    IntentPending   = "PENDING"
    IntentComplete  = "COMPLETE"
    IntentFailed    = "FAILED"
    IntentAbandoned = "ABANDONED"
)

// Intent records that a paid purchase is about to be written to the
// ledger. Anything not COMPLETE is a buyer who paid without receiving a
// ticket and needs manual reconciliation.
type Intent struct {
    ID         string    `json:"id"`
    TicketID   string    `json:"ticket_id"`
    EventID    string    `json:"event_id"`
    Category   string    `json:"category"`
    Phase      string    `json:"phase,omitempty"`
    Quantity   int       `json:"quantity"`
    BuyerID    string    `json:"buyer_id"`
    PaymentRef string    `json:"payment_ref"`
    Total      int64     `json:"total"`
    Currency   string    `json:"currency"`
    Status     string    `json:"status"`
    Detail     string    `json:"detail,omitempty"`
    CreatedAt  time.Time `json:"created_at"`
    UpdatedAt  time.Time `json:"updated_at"`
}
