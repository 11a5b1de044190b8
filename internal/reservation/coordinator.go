// Package reservation orchestrates one contended purchase attempt:
// availability check, lock acquisition, re-validation, external payment,
// a final re-validation and the hand-off to the ledger. Every terminal
// outcome releases the lock exactly once.
package reservation

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/inventory"
    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/lock"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/payment"
    "github.com/iliyamo/ticket-inventory/internal/phase"
    "github.com/iliyamo/ticket-inventory/internal/utils"
)

// Catalog supplies events with their packed phases and categories.
type Catalog interface {
    GetEvent(ctx context.Context, id string) (*model.Event, error)
}

// LockStore is the create-if-absent mutual exclusion primitive.
type LockStore interface {
    Acquire(ctx context.Context, l model.Lock) error
    Release(ctx context.Context, key, id string) error
    Held(ctx context.Context, key, id string) (bool, error)
}

// Ledger writes paid reservations and standalone transactions.
type Ledger interface {
    Commit(ctx context.Context, e ledger.Entry) (*ledger.Receipt, error)
    Record(ctx context.Context, t model.Transaction) error
    IntentStatus(ctx context.Context, ticketID string) (string, error)
}

// Verifier authenticates gateway results.
type Verifier interface {
    Verify(r payment.Result) error
}

// State is the position of a reservation in its lifecycle.
type State string

const (
    StateInitiated      State = "INITIATED"
    StateLocked         State = "LOCKED"
    StatePaymentPending State = "PAYMENT_PENDING"
    StateConfirmed      State = "CONFIRMED"
    StateFailed         State = "FAILED"
    StateReleased       State = "RELEASED"
)

// Handle is what BeginReservation returns and what the payment step hands
// back. It is serialized into a signed token between the two calls. State
// is tracked in memory only; a handle decoded from a token has no State
// and is checked against the lock store instead.
type Handle struct {
    TicketID  string               `json:"ticket_id"`
    LockID    string               `json:"lock_id"`
    LockKey   string               `json:"lock_key"`
    EventID   string               `json:"event_id"`
    Category  string               `json:"category"`
    Phase     string               `json:"phase,omitempty"`
    Quantity  int                  `json:"quantity"`
    Buyer     model.Buyer          `json:"buyer"`
    Price     model.PriceBreakdown `json:"price"`
    Currency  string               `json:"currency"`
    State     State                `json:"-"`
    CreatedAt time.Time            `json:"created_at"`
    ExpiresAt time.Time            `json:"expires_at"`
}

func (h *Handle) valid() bool {
    return h != nil && h.TicketID != "" && h.LockID != "" && h.LockKey != "" && h.EventID != "" && h.Quantity >= 1
}

// BeginRequest asks for quantity tickets of category for an event.
type BeginRequest struct {
    EventID  string
    Category string
    Quantity int
    Buyer    model.Buyer
}

// Options tunes a Coordinator.
type Options struct {
    LockTTL  time.Duration // lifetime of a reservation lock
    Scope    lock.Scope    // what a lock key guards
    Currency string        // currency sent to the gateway
    Gateway  string        // gateway name recorded on transactions
}

// Coordinator runs the reservation state machine.
type Coordinator struct {
    catalog  Catalog
    locks    LockStore
    ledger   Ledger
    verifier Verifier
    resolver phase.Resolver
    clock    clock.Clock
    log      *slog.Logger
    opts     Options
}

// NewCoordinator wires a Coordinator. A nil verifier accepts every result.
func NewCoordinator(cat Catalog, locks LockStore, l Ledger, v Verifier, resolver phase.Resolver, clk clock.Clock, logger *slog.Logger, opts Options) *Coordinator {
    if opts.LockTTL <= 0 {
        opts.LockTTL = 5 * time.Minute
    }
    if opts.Currency == "" {
        opts.Currency = "INR"
    }
    if opts.Gateway == "" {
        opts.Gateway = "razorpay"
    }
    return &Coordinator{catalog: cat, locks: locks, ledger: l, verifier: v, resolver: resolver, clock: clk, log: logger, opts: opts}
}

// Offer is the buyable state of an event right now.
type Offer struct {
    EventID string         `json:"event_id"`
    Name    string         `json:"name"`
    Phased  bool           `json:"phased"`
    Phase   string         `json:"phase,omitempty"`
    OnSale  bool           `json:"on_sale"`
    Options []OfferOption `json:"options"`
}

// OfferOption is one category with the price of a single ticket.
type OfferOption struct {
    phase.Option
    Price model.PriceBreakdown `json:"price"`
}

// Offer resolves the current phase and its offerable categories.
func (c *Coordinator) Offer(ctx context.Context, eventID string) (*Offer, error) {
    ev, err := c.catalog.GetEvent(ctx, eventID)
    if err != nil {
        return nil, err
    }
    res := c.resolver.Resolve(ev.Phases, c.clock.Now())
    out := &Offer{EventID: ev.ID, Name: ev.Name, Phased: res.Phased, Phase: res.Current, OnSale: res.OnSale(), Options: []OfferOption{}}
    for _, o := range phase.Offerable(ev.Categories, res) {
        out.Options = append(out.Options, OfferOption{Option: o, Price: Price(o.UnitPrice, 1)})
    }
    return out, nil
}

// BeginReservation checks availability, takes the lock and re-validates.
// On success the handle is PAYMENT_PENDING and the caller must eventually
// call CompletePayment or AbortReservation.
func (c *Coordinator) BeginReservation(ctx context.Context, req BeginRequest) (*Handle, error) {
    if req.Quantity < 1 {
        return nil, ErrInvalidQuantity
    }
    if req.Buyer.ID == "" {
        return nil, ErrUnauthenticated
    }

    // Step 1: availability.
    _, opt, err := c.available(ctx, req.EventID, req.Category, req.Quantity, "availability")
    if err != nil {
        return nil, err
    }

    // Step 2: lock.
    now := c.clock.Now()
    ticketID, err := utils.NewTicketID(now)
    if err != nil {
        return nil, err
    }
    h := &Handle{
        TicketID:  ticketID,
        LockID:    uuid.NewString(),
        LockKey:   lock.KeyFor(c.opts.Scope, req.EventID, opt.CategoryName, opt.Phase, ticketID),
        EventID:   req.EventID,
        Category:  opt.CategoryName,
        Phase:     opt.Phase,
        Quantity:  req.Quantity,
        Buyer:     req.Buyer,
        Currency:  c.opts.Currency,
        State:     StateInitiated,
        CreatedAt: now,
        ExpiresAt: now.Add(c.opts.LockTTL),
    }
    err = c.locks.Acquire(ctx, model.Lock{
        Key:       h.LockKey,
        ID:        h.LockID,
        TicketID:  h.TicketID,
        EventID:   h.EventID,
        BuyerID:   h.Buyer.ID,
        CreatedAt: h.CreatedAt,
        ExpiresAt: h.ExpiresAt,
    })
    if errors.Is(err, lock.ErrHeld) {
        return nil, &ConcurrentReservationError{Key: h.LockKey}
    }
    if err != nil {
        return nil, err
    }
    h.State = StateLocked

    // Step 3: re-validate under the lock. The phase may have rolled over
    // between the two reads.
    _, fresh, err := c.available(ctx, req.EventID, req.Category, req.Quantity, "post-lock")
    if err == nil && fresh.Phase != opt.Phase {
        err = &SoldOutError{EventID: req.EventID, Category: req.Category, Phase: opt.Phase, Requested: req.Quantity, Checkpoint: "post-lock"}
    }
    if err != nil {
        c.release(ctx, h, StateFailed)
        return nil, err
    }

    h.Price = Price(fresh.UnitPrice, req.Quantity)
    h.State = StatePaymentPending
    c.log.Info("reservation locked", "ticket_id", h.TicketID, "event_id", h.EventID, "category", h.Category,
        "phase", h.Phase, "quantity", h.Quantity, "buyer_id", h.Buyer.ID, "total", h.Price.Total)
    return h, nil
}

// CompletePayment finishes a reservation with the gateway's result. A
// failed or unverifiable result aborts it. A successful one is
// re-validated a final time and handed to the ledger. The lock is released
// on every path.
func (c *Coordinator) CompletePayment(ctx context.Context, h *Handle, res payment.Result) (*ledger.Receipt, error) {
    if err := c.checkLive(ctx, h); err != nil {
        return nil, err
    }
    if err := c.ensureHeld(ctx, h); err != nil {
        var expired *ReservationExpiredError
        if errors.As(err, &expired) && res.Success && (c.verifier == nil || c.verifier.Verify(res) == nil) {
            expired.RefundRequired = true
            c.recordFailure(ctx, h, res, model.TransactionRefundRequired, "paid after reservation lock was lost")
            return nil, err
        }
        if errors.As(err, &expired) || errors.Is(err, ErrAlreadyCompleted) {
            return nil, err
        }
        c.release(ctx, h, StateFailed)
        if res.Success {
            return nil, c.ledgerError(h, res, err)
        }
        return nil, err
    }
    defer c.release(ctx, h, StateFailed)

    if !res.Success {
        reason := res.Reason
        if reason == "" {
            reason = "payment not completed"
        }
        c.recordFailure(ctx, h, res, model.TransactionFailed, reason)
        return nil, &GatewayError{Reason: reason}
    }
    if c.verifier != nil {
        if err := c.verifier.Verify(res); err != nil {
            c.recordFailure(ctx, h, res, model.TransactionFailed, "unverified payment: "+err.Error())
            return nil, &GatewayError{Reason: "payment could not be verified", Err: err}
        }
    }
    if c.clock.Now().After(h.ExpiresAt) {
        c.log.Warn("payment completed after lock expiry", "ticket_id", h.TicketID, "lock_key", h.LockKey)
    }

    // Step 1: third check against the row the buyer paid for.
    ev, err := c.catalog.GetEvent(ctx, h.EventID)
    if err != nil {
        return nil, c.ledgerError(h, res, err)
    }
    _, row, err := inventory.Find(ev.Categories, inventory.Key{Name: h.Category, Phase: h.Phase})
    if err != nil || row.Quantity < h.Quantity {
        c.recordFailure(ctx, h, res, model.TransactionRefundRequired, "sold out during payment")
        return nil, &SoldOutError{EventID: h.EventID, Category: h.Category, Phase: h.Phase, Requested: h.Quantity,
            Available: row.Quantity, Checkpoint: "post-payment", RefundRequired: true}
    }

    // Step 2: ledger.
    receipt, err := c.ledger.Commit(ctx, ledger.Entry{
        TicketID:   h.TicketID,
        Event:      *ev,
        Category:   h.Category,
        Phase:      h.Phase,
        Quantity:   h.Quantity,
        Price:      h.Price,
        Currency:   h.Currency,
        Buyer:      h.Buyer,
        Gateway:    c.opts.Gateway,
        PaymentRef: res.PaymentRef,
        Metadata:   gatewayMetadata(res),
    })
    switch {
    case err == nil:
    case errors.Is(err, ledger.ErrDuplicateIntent):
        return nil, ErrAlreadyCompleted
    case errors.Is(err, ledger.ErrSoldOut):
        return nil, &SoldOutError{EventID: h.EventID, Category: h.Category, Phase: h.Phase, Requested: h.Quantity,
            Checkpoint: "commit", RefundRequired: true}
    default:
        return nil, c.ledgerError(h, res, err)
    }
    h.State = StateConfirmed
    return receipt, nil
}

// AbortReservation cancels a reservation before payment succeeded: the
// lock is released and a FAILED transaction records reason. Inventory is
// not touched.
func (c *Coordinator) AbortReservation(ctx context.Context, h *Handle, reason string) error {
    if err := c.checkLive(ctx, h); err != nil {
        return err
    }
    if err := c.ensureHeld(ctx, h); err != nil {
        var expired *ReservationExpiredError
        switch {
        case errors.As(err, &expired):
            return ErrInvalidHandle
        case errors.Is(err, ErrAlreadyCompleted):
            return err
        }
        c.log.Warn("lock ownership unknown; aborting anyway", "ticket_id", h.TicketID, "error", err)
    }
    if reason == "" {
        reason = "aborted"
    }
    c.release(ctx, h, StateFailed)
    c.recordFailure(ctx, h, payment.Result{}, model.TransactionFailed, reason)
    return nil
}

// checkLive rejects handles that are malformed or already terminal in
// memory. A terminal handle whose purchase was committed reports
// ErrAlreadyCompleted.
func (c *Coordinator) checkLive(ctx context.Context, h *Handle) error {
    if !h.valid() {
        return ErrInvalidHandle
    }
    switch h.State {
    case StateConfirmed:
        return ErrAlreadyCompleted
    case StateFailed, StateReleased:
        if status, err := c.ledger.IntentStatus(ctx, h.TicketID); err == nil && status == model.IntentComplete {
            return ErrAlreadyCompleted
        }
        return ErrInvalidHandle
    }
    return nil
}

// ensureHeld checks that h still owns its lock. When it does not, the
// attempt is over: ErrAlreadyCompleted if it reached the ledger, otherwise
// a *ReservationExpiredError. The handle is then RELEASED without another
// release call.
func (c *Coordinator) ensureHeld(ctx context.Context, h *Handle) error {
    held, err := c.locks.Held(ctx, h.LockKey, h.LockID)
    if err != nil {
        return fmt.Errorf("check lock %s: %w", h.LockKey, err)
    }
    if held {
        return nil
    }
    h.State = StateReleased
    status, err := c.ledger.IntentStatus(ctx, h.TicketID)
    if err != nil {
        return fmt.Errorf("intent status %s: %w", h.TicketID, err)
    }
    if status != "" {
        return ErrAlreadyCompleted
    }
    c.log.Warn("reservation lock no longer held", "ticket_id", h.TicketID, "lock_key", h.LockKey)
    return &ReservationExpiredError{TicketID: h.TicketID}
}

// available re-reads the event and returns the offerable option for
// category when it can supply qty.
func (c *Coordinator) available(ctx context.Context, eventID, category string, qty int, checkpoint string) (*model.Event, phase.Option, error) {
    ev, err := c.catalog.GetEvent(ctx, eventID)
    if err != nil {
        return nil, phase.Option{}, err
    }
    res := c.resolver.Resolve(ev.Phases, c.clock.Now())
    opt, ok := phase.Lookup(phase.Offerable(ev.Categories, res), category)
    if !ok || opt.Available < qty {
        return nil, phase.Option{}, &SoldOutError{EventID: eventID, Category: category, Phase: res.Current,
            Requested: qty, Available: opt.Available, Checkpoint: checkpoint}
    }
    return ev, opt, nil
}

// release frees the lock once per handle and moves it to RELEASED.
// Release failures are logged: an expired lock may already have been
// swept or taken over.
func (c *Coordinator) release(ctx context.Context, h *Handle, terminal State) {
    if h.State == StateReleased {
        return
    }
    if h.State != StateConfirmed {
        h.State = terminal
    }
    err := c.locks.Release(context.WithoutCancel(ctx), h.LockKey, h.LockID)
    switch {
    case err == nil:
    case errors.Is(err, lock.ErrNotHeld):
        c.log.Warn("lock already gone at release", "ticket_id", h.TicketID, "lock_key", h.LockKey)
    default:
        c.log.Error("release lock", "ticket_id", h.TicketID, "lock_key", h.LockKey, "error", err)
    }
    h.State = StateReleased
}

func (c *Coordinator) recordFailure(ctx context.Context, h *Handle, res payment.Result, status, reason string) {
    t := model.Transaction{
        TicketID:   h.TicketID,
        EventID:    h.EventID,
        BuyerID:    h.Buyer.ID,
        Gateway:    c.opts.Gateway,
        PaymentRef: res.PaymentRef,
        Amount:     h.Price.Total,
        Currency:   h.Currency,
        Status:     status,
        Reason:     reason,
        Metadata:   gatewayMetadata(res),
    }
    if err := c.ledger.Record(context.WithoutCancel(ctx), t); err != nil {
        c.log.Error("record transaction", "ticket_id", h.TicketID, "status", status, "reason", reason, "error", err)
    }
}

func (c *Coordinator) ledgerError(h *Handle, res payment.Result, err error) error {
    le := &LedgerWriteError{TicketID: h.TicketID, PaymentRef: res.PaymentRef, Err: err}
    var we *ledger.WriteError
    if errors.As(err, &we) {
        le.IntentID = we.IntentID
    } else {
        c.log.Error("ledger write failed; manual reconciliation required", "ticket_id", h.TicketID,
            "event_id", h.EventID, "category", h.Category, "phase", h.Phase, "quantity", h.Quantity,
            "buyer_id", h.Buyer.ID, "payment_ref", res.PaymentRef, "total", h.Price.Total, "error", err)
    }
    return le
}

func gatewayMetadata(res payment.Result) map[string]string {
    if res.OrderRef == "" && res.PaymentRef == "" && len(res.Metadata) == 0 {
        return nil
    }
    m := make(map[string]string, len(res.Metadata)+2)
    for k, v := range res.Metadata {
        m[k] = v
    }
    if res.OrderRef != "" {
        m["order_ref"] = res.OrderRef
    }
    if res.PaymentRef != "" {
        m["payment_ref"] = res.PaymentRef
    }
    return m
}
