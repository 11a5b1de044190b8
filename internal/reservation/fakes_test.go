package reservation

import (
    "context"
    "errors"
    "io"
    "log/slog"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/inventory"
    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/lock"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/payment"
    "github.com/iliyamo/ticket-inventory/internal/phase"
)

var t0 = time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

// memDB is a tiny in-memory stand-in for the SQL store: catalog, ledger
// records and intents behind one mutex.
type memDB struct {
    mu           sync.Mutex
    events       map[string]model.Event
    orders       []model.Order
    tickets      []model.Ticket
    transactions []model.Transaction
    intents      map[string]model.Intent
}

func newMemDB(events ...model.Event) *memDB {
    db := &memDB{events: map[string]model.Event{}, intents: map[string]model.Intent{}}
    for _, e := range events {
        db.events[e.ID] = e
    }
    return db
}

func (db *memDB) GetEvent(_ context.Context, id string) (*model.Event, error) {
    db.mu.Lock()
    defer db.mu.Unlock()
    e, ok := db.events[id]
    if !ok {
        return nil, errors.New("event not found")
    }
    e.Phases = append([]string(nil), e.Phases...)
    e.Categories = append([]string(nil), e.Categories...)
    return &e, nil
}

func (db *memDB) setCategories(id string, rows ...string) {
    db.mu.Lock()
    defer db.mu.Unlock()
    e := db.events[id]
    e.Categories = rows
    db.events[id] = e
}

func (db *memDB) categories(id string) []string {
    db.mu.Lock()
    defer db.mu.Unlock()
    return append([]string(nil), db.events[id].Categories...)
}

func (db *memDB) CreateIntent(_ context.Context, in model.Intent) error {
    db.mu.Lock()
    defer db.mu.Unlock()
    for _, existing := range db.intents {
        if existing.TicketID == in.TicketID {
            return ledger.ErrDuplicateIntent
        }
    }
    db.intents[in.ID] = in
    return nil
}

func (db *memDB) MarkIntent(_ context.Context, id, status, detail string, at time.Time) error {
    db.mu.Lock()
    defer db.mu.Unlock()
    in := db.intents[id]
    in.Status, in.Detail, in.UpdatedAt = status, detail, at
    db.intents[id] = in
    return nil
}

func (db *memDB) CommitPurchase(_ context.Context, p ledger.Purchase) (int, error) {
    db.mu.Lock()
    defer db.mu.Unlock()
    e := db.events[p.EventID]
    next, row, err := inventory.Take(e.Categories, p.Row, p.Quantity)
    if err != nil {
        return 0, err
    }
    e.Categories = next
    db.events[p.EventID] = e
    db.orders = append(db.orders, p.Order)
    db.tickets = append(db.tickets, p.Ticket)
    db.transactions = append(db.transactions, p.Transaction)
    in := db.intents[p.IntentID]
    in.Status = model.IntentComplete
    db.intents[p.IntentID] = in
    return row.Quantity, nil
}

func (db *memDB) AppendTransaction(_ context.Context, t model.Transaction) error {
    db.mu.Lock()
    defer db.mu.Unlock()
    db.transactions = append(db.transactions, t)
    return nil
}

func (db *memDB) IntentStatus(_ context.Context, ticketID string) (string, error) {
    db.mu.Lock()
    defer db.mu.Unlock()
    for _, in := range db.intents {
        if in.TicketID == ticketID {
            return in.Status, nil
        }
    }
    return "", nil
}

func (db *memDB) transactionsWith(status string) []model.Transaction {
    db.mu.Lock()
    defer db.mu.Unlock()
    var out []model.Transaction
    for _, t := range db.transactions {
        if t.Status == status {
            out = append(out, t)
        }
    }
    return out
}

func (db *memDB) counts() (orders, tickets int) {
    db.mu.Lock()
    defer db.mu.Unlock()
    return len(db.orders), len(db.tickets)
}

// memLocks is a create-if-absent lock table that counts calls per lock id.
type memLocks struct {
    mu        sync.Mutex
    held      map[string]model.Lock
    acquired  map[string]int
    releases  map[string]int
    onAcquire func(model.Lock)
}

func newMemLocks() *memLocks {
    return &memLocks{held: map[string]model.Lock{}, acquired: map[string]int{}, releases: map[string]int{}}
}

func (m *memLocks) Acquire(_ context.Context, l model.Lock) error {
    m.mu.Lock()
    if cur, ok := m.held[l.Key]; ok && !cur.Expired(l.CreatedAt) {
        m.mu.Unlock()
        return lock.ErrHeld
    }
    m.held[l.Key] = l
    m.acquired[l.ID]++
    hook := m.onAcquire
    m.mu.Unlock()
    if hook != nil {
        hook(l)
    }
    return nil
}

func (m *memLocks) Release(_ context.Context, key, id string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.releases[id]++
    if cur, ok := m.held[key]; !ok || cur.ID != id {
        return lock.ErrNotHeld
    }
    delete(m.held, key)
    return nil
}

func (m *memLocks) Held(_ context.Context, key, id string) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.held[key]
    return ok && cur.ID == id, nil
}

func (m *memLocks) DeleteExpired(_ context.Context, now time.Time) (int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    n := 0
    for k, l := range m.held {
        if l.Expired(now) {
            delete(m.held, k)
            n++
        }
    }
    return n, nil
}

// assertHygiene checks that every acquired lock was released exactly once
// and nothing is left behind.
func (m *memLocks) assertHygiene(t *testing.T) {
    t.Helper()
    m.mu.Lock()
    defer m.mu.Unlock()
    if len(m.held) != 0 {
        t.Errorf("locks left behind: %v", m.held)
    }
    for id, n := range m.acquired {
        if m.releases[id] != n {
            t.Errorf("lock %s acquired %d times, released %d times", id, n, m.releases[id])
        }
    }
}

type memMedia struct {
    mu  sync.Mutex
    err error
}

func (m *memMedia) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.err != nil {
        return "", m.err
    }
    return "https://media.test/" + key, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const paySecret = "key-secret"

type harness struct {
    db     *memDB
    locks  *memLocks
    media  *memMedia
    clock  *clock.Fake
    coord  *Coordinator
    signer *payment.Verifier
}

func newHarness(t *testing.T, scope lock.Scope, ev model.Event) *harness {
    t.Helper()
    h := &harness{
        db:     newMemDB(ev),
        locks:  newMemLocks(),
        media:  &memMedia{},
        clock:  clock.NewFake(t0),
        signer: payment.NewVerifier(paySecret),
    }
    w := ledger.NewWriter(h.db, h.media, nil, h.clock, discard())
    h.coord = NewCoordinator(h.db, h.locks, w, h.signer, phase.NewResolver(phase.PolicySchedule, time.UTC), h.clock, discard(),
        Options{LockTTL: 5 * time.Minute, Scope: scope, Currency: "INR", Gateway: "razorpay"})
    return h
}

func (h *harness) paid(ref string) payment.Result {
    r := payment.Result{Success: true, OrderRef: "order_" + ref, PaymentRef: "pay_" + ref}
    r.Signature = h.signer.Sign(r.OrderRef, r.PaymentRef)
    return r
}

func event(rows ...string) model.Event {
    return model.Event{ID: "evt-1", Name: "Jazz Night", Location: "Blue Hall", Phases: []string{"Phase1"}, Categories: rows}
}

var buyer = model.Buyer{ID: "buyer-1", Name: "Asha", Email: "asha@example.com"}
