package ledger

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/inventory"
    "github.com/iliyamo/ticket-inventory/internal/media"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/queue"
    "github.com/iliyamo/ticket-inventory/internal/service"
    "github.com/iliyamo/ticket-inventory/internal/utils"
)

// Writer turns paid reservations into ledger records.
type Writer struct {
    store  Store
    media  media.Store
    pub    service.Publisher
    clock  clock.Clock
    log    *slog.Logger
    render func(string) ([]byte, error)
}

// NewWriter wires a Writer. A nil publisher disables event publishing.
func NewWriter(store Store, ms media.Store, pub service.Publisher, clk clock.Clock, logger *slog.Logger) *Writer {
    if pub == nil {
        pub = service.NopPublisher{}
    }
    return &Writer{store: store, media: ms, pub: pub, clock: clk, log: logger, render: RenderQR}
}

// Commit records a paid reservation. The sequence is: persist a PENDING
// intent, render and upload the QR image, then decrement inventory and
// insert Order, Ticket and Transaction while completing the intent in one
// store transaction. On ErrSoldOut a REFUND_REQUIRED transaction is
// appended; any other failure marks the intent FAILED and returns a
// *WriteError.
func (w *Writer) Commit(ctx context.Context, e Entry) (*Receipt, error) {
    now := w.clock.Now()
    intent := model.Intent{
        ID:         uuid.NewString(),
        TicketID:   e.TicketID,
        EventID:    e.Event.ID,
        Category:   e.Category,
        Phase:      e.Phase,
        Quantity:   e.Quantity,
        BuyerID:    e.Buyer.ID,
        PaymentRef: e.PaymentRef,
        Total:      e.Price.Total,
        Currency:   e.Currency,
        Status:     model.IntentPending,
        CreatedAt:  now,
        UpdatedAt:  now,
    }
    if err := w.store.CreateIntent(ctx, intent); err != nil {
        if errors.Is(err, ErrDuplicateIntent) {
            return nil, err
        }
        return nil, w.fail(ctx, intent, fmt.Errorf("create intent: %w", err))
    }

    png, err := w.render(e.TicketID)
    if err != nil {
        return nil, w.fail(ctx, intent, fmt.Errorf("render qr: %w", err))
    }
    qrKey := QRKey(e.TicketID)
    qrURL, err := w.media.Put(ctx, qrKey, png, "image/png")
    if err != nil {
        return nil, w.fail(ctx, intent, fmt.Errorf("upload qr: %w", err))
    }

    txnID, err := utils.NewTransactionID(now)
    if err != nil {
        return nil, w.fail(ctx, intent, err)
    }
    p := Purchase{
        IntentID:    intent.ID,
        EventID:     e.Event.ID,
        Row:         inventory.Key{Name: e.Category, Phase: e.Phase},
        Quantity:    e.Quantity,
        Order:       buildOrder(e, txnID, now),
        CommittedAt: now,
    }
    p.Ticket = buildTicket(e, p.Order.ID, qrKey, qrURL, now)
    p.Transaction = model.Transaction{
        ID:         txnID,
        TicketID:   e.TicketID,
        EventID:    e.Event.ID,
        BuyerID:    e.Buyer.ID,
        Gateway:    e.Gateway,
        PaymentRef: e.PaymentRef,
        Amount:     e.Price.Total,
        Currency:   e.Currency,
        Status:     model.TransactionSuccess,
        Metadata:   e.Metadata,
        CreatedAt:  now,
    }

    remaining, err := w.store.CommitPurchase(ctx, p)
    if err != nil {
        if errors.Is(err, inventory.ErrInsufficient) || errors.Is(err, inventory.ErrNotFound) {
            return nil, w.soldOut(ctx, intent, e, err)
        }
        return nil, w.fail(ctx, intent, fmt.Errorf("commit purchase: %w", err))
    }

    w.log.Info("ticket issued", "ticket_id", e.TicketID, "order_id", p.Order.ID,
        "event_id", e.Event.ID, "category", e.Category, "phase", e.Phase, "quantity", e.Quantity, "remaining", remaining)
    w.publish(ctx, p, remaining)
    return &Receipt{Order: p.Order, Ticket: p.Ticket, Transaction: p.Transaction}, nil
}

// Record appends a transaction outside of a purchase, e.g. a FAILED
// attempt or a REFUND_REQUIRED notice. Missing ID and CreatedAt are filled.
func (w *Writer) Record(ctx context.Context, t model.Transaction) error {
    if t.CreatedAt.IsZero() {
        t.CreatedAt = w.clock.Now()
    }
    if t.ID == "" {
        id, err := utils.NewTransactionID(t.CreatedAt)
        if err != nil {
            return err
        }
        t.ID = id
    }
    return w.store.AppendTransaction(ctx, t)
}

// IntentStatus reports how far ticketID got in the ledger; "" means it
// was never committed.
func (w *Writer) IntentStatus(ctx context.Context, ticketID string) (string, error) {
    return w.store.IntentStatus(ctx, ticketID)
}

func (w *Writer) soldOut(ctx context.Context, intent model.Intent, e Entry, cause error) error {
    ctx = context.WithoutCancel(ctx)
    now := w.clock.Now()
    if err := w.store.MarkIntent(ctx, intent.ID, model.IntentFailed, "sold out at commit: "+cause.Error(), now); err != nil {
        w.log.Error("mark intent failed", "intent_id", intent.ID, "error", err)
    }
    refund := model.Transaction{
        TicketID:   e.TicketID,
        EventID:    e.Event.ID,
        BuyerID:    e.Buyer.ID,
        Gateway:    e.Gateway,
        PaymentRef: e.PaymentRef,
        Amount:     e.Price.Total,
        Currency:   e.Currency,
        Status:     model.TransactionRefundRequired,
        Reason:     "inventory exhausted at commit",
        Metadata:   e.Metadata,
        CreatedAt:  now,
    }
    if err := w.Record(ctx, refund); err != nil {
        w.log.Error("record refund transaction", "ticket_id", e.TicketID, "payment_ref", e.PaymentRef, "error", err)
    }
    w.log.Warn("sold out at commit; refund required", intentAttrs(intent)...)
    return fmt.Errorf("%w: %v", ErrSoldOut, cause)
}

// fail marks the intent FAILED and logs the complete order intent. The
// returned error is always a *WriteError.
func (w *Writer) fail(ctx context.Context, intent model.Intent, cause error) error {
    ctx = context.WithoutCancel(ctx)
    if err := w.store.MarkIntent(ctx, intent.ID, model.IntentFailed, cause.Error(), w.clock.Now()); err != nil {
        w.log.Error("mark intent failed", "intent_id", intent.ID, "error", err)
    }
    attrs := append(intentAttrs(intent), "error", cause)
    w.log.Error("ledger write failed; manual reconciliation required", attrs...)
    return &WriteError{IntentID: intent.ID, TicketID: intent.TicketID, PaymentRef: intent.PaymentRef, Err: cause}
}

func (w *Writer) publish(ctx context.Context, p Purchase, remaining int) {
    issued := queue.TicketIssuedEvent{
        TicketID:   p.Ticket.ID,
        OrderID:    p.Order.ID,
        BuyerID:    p.Order.BuyerID,
        BuyerEmail: p.Order.BuyerEmail,
        EventID:    p.EventID,
        EventName:  p.Ticket.EventName,
        Category:   p.Row.Name,
        Phase:      p.Row.Phase,
        Quantity:   p.Quantity,
        Total:      p.Order.Total,
        Currency:   p.Order.Currency,
        PaymentRef: p.Order.PaymentRef,
        QRURL:      p.Ticket.QRURL,
        IssuedAt:   p.CommittedAt.Format(time.RFC3339),
    }
    if err := w.pub.Publish(ctx, queue.TopicTicketIssued, p.Ticket.ID, issued); err != nil {
        w.log.Warn("publish ticket.issued failed", "ticket_id", p.Ticket.ID, "error", err)
    }
    changed := queue.InventoryChangedEvent{
        EventID:   p.EventID,
        Category:  p.Row.Name,
        Phase:     p.Row.Phase,
        Remaining: remaining,
        ChangedAt: p.CommittedAt.Format(time.RFC3339),
    }
    if err := w.pub.Publish(ctx, queue.TopicInventoryChanged, p.EventID, changed); err != nil {
        w.log.Warn("publish inventory.changed failed", "event_id", p.EventID, "error", err)
    }
}

func buildOrder(e Entry, txnID string, now time.Time) model.Order {
    return model.Order{
        ID:            uuid.NewString(),
        TicketID:      e.TicketID,
        TransactionID: txnID,
        BuyerID:       e.Buyer.ID,
        BuyerName:     e.Buyer.Name,
        BuyerEmail:    e.Buyer.Email,
        EventID:       e.Event.ID,
        Category:      e.Category,
        Phase:         e.Phase,
        Quantity:      e.Quantity,
        UnitPrice:     e.Price.UnitPrice,
        Subtotal:      e.Price.Subtotal,
        Tax:           e.Price.Tax,
        Fee:           e.Price.Fee,
        Total:         e.Price.Total,
        Currency:      e.Currency,
        PaymentRef:    e.PaymentRef,
        CreatedAt:     now,
    }
}

func buildTicket(e Entry, orderID, qrKey, qrURL string, now time.Time) model.Ticket {
    return model.Ticket{
        ID:            e.TicketID,
        OrderID:       orderID,
        EventID:       e.Event.ID,
        EventName:     e.Event.Name,
        EventSubName:  e.Event.SubName,
        EventDate:     e.Event.Date,
        EventTime:     e.Event.Time,
        EventLocation: e.Event.Location,
        BuyerID:       e.Buyer.ID,
        BuyerName:     e.Buyer.Name,
        Category:      e.Category,
        Phase:         e.Phase,
        Quantity:      e.Quantity,
        UnitPrice:     e.Price.UnitPrice,
        AmountPaid:    e.Price.Total,
        Currency:      e.Currency,
        QRKey:         qrKey,
        QRURL:         qrURL,
        CreatedAt:     now,
    }
}

func intentAttrs(in model.Intent) []any {
    return []any{
        "intent_id", in.ID, "ticket_id", in.TicketID, "event_id", in.EventID,
        "category", in.Category, "phase", in.Phase, "quantity", in.Quantity,
        "buyer_id", in.BuyerID, "payment_ref", in.PaymentRef,
        "total", in.Total, "currency", in.Currency,
    }
}
