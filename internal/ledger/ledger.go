// Package ledger is the only writer of inventory decrements. A paid
// reservation becomes an Order, a Ticket and a successful Transaction in a
// single store transaction, bracketed by a durable purchase intent so a
// buyer who paid without receiving a ticket can always be found.
package ledger

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/inventory"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// ErrSoldOut is returned by Commit when the inventory row no longer holds
// the requested quantity. The buyer has paid and must be refunded.
var ErrSoldOut = errors.New("ledger: inventory exhausted at commit")

// ErrDuplicateIntent is returned by Store.CreateIntent when the ticket id
// already has an intent, i.e. the same reservation is committed twice.
var ErrDuplicateIntent = errors.New("ledger: ticket already has a purchase intent")

// Store persists ledger records. CommitPurchase must apply the conditional
// decrement and insert every record of p atomically, returning the row's
// remaining quantity; it returns an error wrapping inventory.ErrInsufficient
// or inventory.ErrNotFound when the row cannot supply p.Quantity.
type Store interface {
    CreateIntent(ctx context.Context, in model.Intent) error
    MarkIntent(ctx context.Context, id, status, detail string, at time.Time) error
    CommitPurchase(ctx context.Context, p Purchase) (int, error)
    AppendTransaction(ctx context.Context, t model.Transaction) error
    // IntentStatus returns the status of the intent recorded for ticketID,
    // or "" when the ticket never reached the ledger.
    IntentStatus(ctx context.Context, ticketID string) (string, error)
}

// Purchase is everything CommitPurchase writes.
type Purchase struct {
    IntentID    string
    EventID     string
    Row         inventory.Key
    Quantity    int
    Order       model.Order
    Ticket      model.Ticket
    Transaction model.Transaction
    CommittedAt time.Time
}

// Entry describes a paid reservation handed over by the coordinator.
type Entry struct {
    TicketID   string
    Event      model.Event
    Category   string
    Phase      string
    Quantity   int
    Price      model.PriceBreakdown
    Currency   string
    Buyer      model.Buyer
    Gateway    string
    PaymentRef string
    Metadata   map[string]string
}

// Receipt is the outcome of a successful Commit.
type Receipt struct {
    Order       model.Order       `json:"order"`
    Ticket      model.Ticket      `json:"ticket"`
    Transaction model.Transaction `json:"transaction"`
}

// WriteError reports a ledger write that failed after payment. The buyer
// has been charged; IntentID locates the durable record for manual
// reconciliation.
type WriteError struct {
    IntentID   string
    TicketID   string
    PaymentRef string
    Err        error
}

func (e *WriteError) Error() string {
    return fmt.Sprintf("ledger write failed (intent %s, ticket %s, payment %s): %v", e.IntentID, e.TicketID, e.PaymentRef, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
