package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/ticket-inventory/internal/database"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// EventRepo reads and writes the events table, the engine's copy of the
// catalog. Phases and categories are stored verbatim as JSON arrays of
// their packed strings.
type EventRepo struct {
    db *sql.DB
    d  database.Dialect
}

// NewEventRepo returns a new EventRepo bound to db.
func NewEventRepo(db *sql.DB, d database.Dialect) *EventRepo { return &EventRepo{db: db, d: d} }

const eventColumns = `id, name, sub_name, location, event_date, event_time, phases, categories, updated_at`

// GetEvent loads one event. It returns ErrEventNotFound for unknown ids.
func (r *EventRepo) GetEvent(ctx context.Context, id string) (*model.Event, error) {
    row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
    ev, err := scanEvent(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrEventNotFound
    }
    return ev, err
}

// Put inserts or replaces an event. It is how catalog data enters the
// engine (ledgerctl put-event).
func (r *EventRepo) Put(ctx context.Context, e model.Event) error {
    phases, err := encodeList(e.Phases)
    if err != nil {
        return err
    }
    cats, err := encodeList(e.Categories)
    if err != nil {
        return err
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var one int
    err = tx.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM events WHERE id = ? FOR UPDATE`), e.ID).Scan(&one)
    switch {
    case errors.Is(err, sql.ErrNoRows):
        _, err = tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
            e.ID, e.Name, e.SubName, e.Location, e.Date, e.Time, phases, cats, utc(e.UpdatedAt))
    case err == nil:
        _, err = tx.ExecContext(ctx, r.d.Rebind(`UPDATE events SET name = ?, sub_name = ?, location = ?, event_date = ?, event_time = ?,
            phases = ?, categories = ?, updated_at = ? WHERE id = ?`),
            e.Name, e.SubName, e.Location, e.Date, e.Time, phases, cats, utc(e.UpdatedAt), e.ID)
    }
    if err != nil {
        return fmt.Errorf("put event %s: %w", e.ID, err)
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

func scanEvent(s scanner) (*model.Event, error) {
    var ev model.Event
    var phases, cats string
    if err := s.Scan(&ev.ID, &ev.Name, &ev.SubName, &ev.Location, &ev.Date, &ev.Time, &phases, &cats, &ev.UpdatedAt); err != nil {
        return nil, err
    }
    var err error
    if ev.Phases, err = decodeList(phases); err != nil {
        return nil, fmt.Errorf("event %s phases: %w", ev.ID, err)
    }
    if ev.Categories, err = decodeList(cats); err != nil {
        return nil, fmt.Errorf("event %s categories: %w", ev.ID, err)
    }
    return &ev, nil
}
