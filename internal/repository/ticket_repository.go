package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/database"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

const ticketColumns = `id, order_id, event_id, event_name, event_sub_name, event_date, event_time, event_location,
    buyer_id, buyer_name, category, phase, quantity, unit_price, amount_paid, currency, qr_key, qr_url,
    checked_in, checked_in_at, created_at`

const orderColumns = `id, ticket_id, transaction_id, buyer_id, buyer_name, buyer_email, event_id, category, phase,
    quantity, unit_price, subtotal, tax, fee, total, currency, payment_ref, created_at`

// TicketRepo reads issued tickets and records check-ins. Tickets are
// written only by LedgerRepo.CommitPurchase.
type TicketRepo struct {
    db *sql.DB
    d  database.Dialect
}

// NewTicketRepo returns a new TicketRepo bound to db.
func NewTicketRepo(db *sql.DB, d database.Dialect) *TicketRepo { return &TicketRepo{db: db, d: d} }

// GetByID returns ErrTicketNotFound for unknown ids.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
    t, err := scanTicket(r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`), id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTicketNotFound
    }
    return t, err
}

// ListByBuyer returns a buyer's tickets, newest first.
func (r *TicketRepo) ListByBuyer(ctx context.Context, buyerID string) ([]model.Ticket, error) {
    rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT `+ticketColumns+` FROM tickets WHERE buyer_id = ? ORDER BY created_at DESC`), buyerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Ticket{}
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

// CheckIn marks a ticket as admitted. A ticket can be checked in once;
// a second attempt returns ErrAlreadyCheckedIn.
func (r *TicketRepo) CheckIn(ctx context.Context, id string, at time.Time) (*model.Ticket, error) {
    res, err := r.db.ExecContext(ctx, r.d.Rebind(`UPDATE tickets SET checked_in = ?, checked_in_at = ? WHERE id = ? AND checked_in = ?`),
        true, utc(at), id, false)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    t, err := r.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return t, ErrAlreadyCheckedIn
    }
    return t, nil
}

func scanTicket(s scanner) (*model.Ticket, error) {
    var t model.Ticket
    var checkedInAt sql.NullTime
    if err := s.Scan(&t.ID, &t.OrderID, &t.EventID, &t.EventName, &t.EventSubName, &t.EventDate, &t.EventTime, &t.EventLocation,
        &t.BuyerID, &t.BuyerName, &t.Category, &t.Phase, &t.Quantity, &t.UnitPrice, &t.AmountPaid, &t.Currency,
        &t.QRKey, &t.QRURL, &t.CheckedIn, &checkedInAt, &t.CreatedAt); err != nil {
        return nil, err
    }
    if checkedInAt.Valid {
        at := checkedInAt.Time.UTC()
        t.CheckedInAt = &at
    }
    return &t, nil
}

// OrderRepo reads orders. Orders are written only by
// LedgerRepo.CommitPurchase.
type OrderRepo struct {
    db *sql.DB
    d  database.Dialect
}

// NewOrderRepo returns a new OrderRepo bound to db.
func NewOrderRepo(db *sql.DB, d database.Dialect) *OrderRepo { return &OrderRepo{db: db, d: d} }

// ListByBuyer returns a buyer's orders, newest first.
func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
    rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT `+orderColumns+` FROM orders WHERE buyer_id = ? ORDER BY created_at DESC`), buyerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Order{}
    for rows.Next() {
        var o model.Order
        if err := rows.Scan(&o.ID, &o.TicketID, &o.TransactionID, &o.BuyerID, &o.BuyerName, &o.BuyerEmail, &o.EventID,
            &o.Category, &o.Phase, &o.Quantity, &o.UnitPrice, &o.Subtotal, &o.Tax, &o.Fee, &o.Total, &o.Currency,
            &o.PaymentRef, &o.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, o)
    }
    return out, rows.Err()
}
