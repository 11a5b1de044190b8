package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/database"
    "github.com/iliyamo/ticket-inventory/internal/inventory"
    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// LedgerRepo persists purchase intents, orders, tickets and transactions.
// It is the SQL implementation of ledger.Store and ledger.IntentStore.
type LedgerRepo struct {
    db *sql.DB
    d  database.Dialect
}

// NewLedgerRepo returns a new LedgerRepo bound to db.
func NewLedgerRepo(db *sql.DB, d database.Dialect) *LedgerRepo { return &LedgerRepo{db: db, d: d} }

var (
    _ ledger.Store       = (*LedgerRepo)(nil)
    _ ledger.IntentStore = (*LedgerRepo)(nil)
)

const intentColumns = `id, ticket_id, event_id, category, phase, quantity, buyer_id, payment_ref, total, currency, status, detail, created_at, updated_at`

// CreateIntent inserts a purchase intent. ticket_id is unique, so a
// replayed completion fails with ledger.ErrDuplicateIntent.
func (r *LedgerRepo) CreateIntent(ctx context.Context, in model.Intent) error {
    _, err := r.db.ExecContext(ctx, r.d.Rebind(`INSERT INTO purchase_intents (`+intentColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
        in.ID, in.TicketID, in.EventID, in.Category, in.Phase, in.Quantity, in.BuyerID, in.PaymentRef,
        in.Total, in.Currency, in.Status, in.Detail, utc(in.CreatedAt), utc(in.UpdatedAt))
    if r.d.IsUniqueViolation(err) {
        return ledger.ErrDuplicateIntent
    }
    return err
}

// IntentStatus returns the status of ticketID's intent, or "" if none.
func (r *LedgerRepo) IntentStatus(ctx context.Context, ticketID string) (string, error) {
    var status string
    err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT status FROM purchase_intents WHERE ticket_id = ?`), ticketID).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return "", nil
    }
    return status, err
}

// MarkIntent sets an intent's status and detail.
func (r *LedgerRepo) MarkIntent(ctx context.Context, id, status, detail string, at time.Time) error {
    _, err := r.db.ExecContext(ctx, r.d.Rebind(`UPDATE purchase_intents SET status = ?, detail = ?, updated_at = ? WHERE id = ?`),
        status, detail, utc(at), id)
    return err
}

// CommitPurchase applies the conditional decrement and writes the order,
// ticket and transaction in one SQL transaction. The event row is locked
// with SELECT ... FOR UPDATE so concurrent commits on the same event
// serialize; inventory.Take refuses rather than floors.
func (r *LedgerRepo) CommitPurchase(ctx context.Context, p ledger.Purchase) (int, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var raw string
    err = tx.QueryRowContext(ctx, r.d.Rebind(`SELECT categories FROM events WHERE id = ? FOR UPDATE`), p.EventID).Scan(&raw)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrEventNotFound
    }
    if err != nil {
        return 0, err
    }
    rows, err := decodeList(raw)
    if err != nil {
        return 0, fmt.Errorf("event %s categories: %w", p.EventID, err)
    }
    next, row, err := inventory.Take(rows, p.Row, p.Quantity)
    if err != nil {
        return 0, err
    }
    encoded, err := encodeList(next)
    if err != nil {
        return 0, err
    }
    if _, err := tx.ExecContext(ctx, r.d.Rebind(`UPDATE events SET categories = ?, updated_at = ? WHERE id = ?`),
        encoded, utc(p.CommittedAt), p.EventID); err != nil {
        return 0, fmt.Errorf("update categories: %w", err)
    }
    if err := r.insertOrder(ctx, tx, p.Order); err != nil {
        return 0, fmt.Errorf("insert order: %w", err)
    }
    if err := r.insertTicket(ctx, tx, p.Ticket); err != nil {
        return 0, fmt.Errorf("insert ticket: %w", err)
    }
    if err := r.insertTransaction(ctx, tx, p.Transaction); err != nil {
        return 0, fmt.Errorf("insert transaction: %w", err)
    }
    if _, err := tx.ExecContext(ctx, r.d.Rebind(`UPDATE purchase_intents SET status = ?, detail = '', updated_at = ? WHERE id = ?`),
        model.IntentComplete, utc(p.CommittedAt), p.IntentID); err != nil {
        return 0, fmt.Errorf("complete intent: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return row.Quantity, nil
}

// AppendTransaction inserts a standalone transaction record.
func (r *LedgerRepo) AppendTransaction(ctx context.Context, t model.Transaction) error {
    return r.insertTransaction(ctx, r.db, t)
}

// PendingBefore lists PENDING intents last touched before cutoff, oldest
// first.
func (r *LedgerRepo) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Intent, error) {
    q := r.d.Rebind(`SELECT ` + intentColumns + ` FROM purchase_intents WHERE status = ? AND updated_at < ? ORDER BY updated_at LIMIT ?`)
    return r.queryIntents(ctx, q, model.IntentPending, utc(cutoff), limit)
}

// Abandon moves a PENDING intent to ABANDONED. It reports false when the
// intent had already left PENDING.
func (r *LedgerRepo) Abandon(ctx context.Context, id, detail string, at time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx, r.d.Rebind(`UPDATE purchase_intents SET status = ?, detail = ?, updated_at = ? WHERE id = ? AND status = ?`),
        model.IntentAbandoned, detail, utc(at), id, model.IntentPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// ListIntents returns intents newest first, optionally filtered by status.
func (r *LedgerRepo) ListIntents(ctx context.Context, status string, limit int) ([]model.Intent, error) {
    if limit <= 0 || limit > 500 {
        limit = 100
    }
    if status == "" {
        return r.queryIntents(ctx, r.d.Rebind(`SELECT `+intentColumns+` FROM purchase_intents ORDER BY created_at DESC LIMIT ?`), limit)
    }
    return r.queryIntents(ctx, r.d.Rebind(`SELECT `+intentColumns+` FROM purchase_intents WHERE status = ? ORDER BY created_at DESC LIMIT ?`), status, limit)
}

// ListTransactions returns every transaction recorded for a ticket id,
// oldest first.
func (r *LedgerRepo) ListTransactions(ctx context.Context, ticketID string) ([]model.Transaction, error) {
    rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT id, ticket_id, event_id, buyer_id, gateway, payment_ref, amount, currency,
        status, reason, metadata, created_at FROM transactions WHERE ticket_id = ? ORDER BY created_at`), ticketID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Transaction{}
    for rows.Next() {
        var t model.Transaction
        var meta string
        if err := rows.Scan(&t.ID, &t.TicketID, &t.EventID, &t.BuyerID, &t.Gateway, &t.PaymentRef, &t.Amount, &t.Currency,
            &t.Status, &t.Reason, &meta, &t.CreatedAt); err != nil {
            return nil, err
        }
        t.Metadata = decodeMeta(meta)
        out = append(out, t)
    }
    return out, rows.Err()
}

func (r *LedgerRepo) queryIntents(ctx context.Context, q string, args ...any) ([]model.Intent, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Intent{}
    for rows.Next() {
        var in model.Intent
        if err := rows.Scan(&in.ID, &in.TicketID, &in.EventID, &in.Category, &in.Phase, &in.Quantity, &in.BuyerID,
            &in.PaymentRef, &in.Total, &in.Currency, &in.Status, &in.Detail, &in.CreatedAt, &in.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, in)
    }
    return out, rows.Err()
}

func (r *LedgerRepo) insertOrder(ctx context.Context, x execer, o model.Order) error {
    _, err := x.ExecContext(ctx, r.d.Rebind(`INSERT INTO orders (`+orderColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
        o.ID, o.TicketID, o.TransactionID, o.BuyerID, o.BuyerName, o.BuyerEmail, o.EventID, o.Category, o.Phase,
        o.Quantity, o.UnitPrice, o.Subtotal, o.Tax, o.Fee, o.Total, o.Currency, o.PaymentRef, utc(o.CreatedAt))
    return err
}

func (r *LedgerRepo) insertTicket(ctx context.Context, x execer, t model.Ticket) error {
    _, err := x.ExecContext(ctx, r.d.Rebind(`INSERT INTO tickets (`+ticketColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
        t.ID, t.OrderID, t.EventID, t.EventName, t.EventSubName, t.EventDate, t.EventTime, t.EventLocation,
        t.BuyerID, t.BuyerName, t.Category, t.Phase, t.Quantity, t.UnitPrice, t.AmountPaid, t.Currency,
        t.QRKey, t.QRURL, t.CheckedIn, t.CheckedInAt, utc(t.CreatedAt))
    return err
}

func (r *LedgerRepo) insertTransaction(ctx context.Context, x execer, t model.Transaction) error {
    meta, err := encodeMeta(t.Metadata)
    if err != nil {
        return err
    }
    _, err = x.ExecContext(ctx, r.d.Rebind(`INSERT INTO transactions
        (id, ticket_id, event_id, buyer_id, gateway, payment_ref, amount, currency, status, reason, metadata, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
        t.ID, t.TicketID, t.EventID, t.BuyerID, t.Gateway, t.PaymentRef, t.Amount, t.Currency, t.Status, t.Reason, meta, utc(t.CreatedAt))
    return err
}
