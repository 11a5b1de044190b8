// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns issued tickets into the booking log.
package queue

// Routing keys, used as RabbitMQ queue names and as the Kafka "type" header.
const (
    TopicTicketIssued     = "ticket.issued"
    TopicInventoryChanged = "inventory.changed"
)

// TicketIssuedEvent is published after a purchase is committed to the
// ledger. It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type TicketIssuedEvent struct {
    TicketID   string `json:"ticket_id"`
    OrderID    string `json:"order_id"`
    BuyerID    string `json:"buyer_id"`
    BuyerEmail string `json:"buyer_email,omitempty"`
    EventID    string `json:"event_id"`
    EventName  string `json:"event_name"`
    Category   string `json:"category"`
    Phase      string `json:"phase,omitempty"`
    Quantity   int    `json:"quantity"`
    Total      int64  `json:"total"`
    Currency   string `json:"currency"`
    PaymentRef string `json:"payment_ref"`
    QRURL      string `json:"qr_url"`
    IssuedAt   string `json:"issued_at"`
}

// InventoryChangedEvent reports the remaining quantity of one inventory
// row after a decrement, so storefronts can refresh availability.
type InventoryChangedEvent struct {
    EventID   string `json:"event_id"`
    Category  string `json:"category"`
    Phase     string `json:"phase,omitempty"`
    Remaining int    `json:"remaining"`
    ChangedAt string `json:"changed_at"`
}
