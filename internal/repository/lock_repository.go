package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/database"
    "github.com/iliyamo/ticket-inventory/internal/lock"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// LockRepo keeps reservation locks in the reservation_locks table. The
// primary key on lock_key makes INSERT the atomic create-if-absent
// primitive.
type LockRepo struct {
    db *sql.DB
    d  database.Dialect
}

// NewLockRepo returns a new LockRepo bound to db.
func NewLockRepo(db *sql.DB, d database.Dialect) *LockRepo { return &LockRepo{db: db, d: d} }

// Acquire creates the lock or fails with lock.ErrHeld. A lock on the same
// key that expired at or before l.CreatedAt is stale and is taken over.
func (r *LockRepo) Acquire(ctx context.Context, l model.Lock) error {
    if _, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM reservation_locks WHERE lock_key = ? AND expires_at <= ?`),
        l.Key, utc(l.CreatedAt)); err != nil {
        return err
    }
    _, err := r.db.ExecContext(ctx, r.d.Rebind(`INSERT INTO reservation_locks
        (lock_key, lock_id, ticket_id, event_id, buyer_id, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
        l.Key, l.ID, l.TicketID, l.EventID, l.BuyerID, utc(l.CreatedAt), utc(l.ExpiresAt))
    if r.d.IsUniqueViolation(err) {
        return lock.ErrHeld
    }
    return err
}

// Release deletes the lock only when id still owns it.
func (r *LockRepo) Release(ctx context.Context, key, id string) error {
    res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM reservation_locks WHERE lock_key = ? AND lock_id = ?`), key, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return lock.ErrNotHeld
    }
    return nil
}

// Held reports whether id still owns the lock on key. An expired row that
// has not been swept or taken over is still held.
func (r *LockRepo) Held(ctx context.Context, key, id string) (bool, error) {
    var n int
    err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM reservation_locks WHERE lock_key = ? AND lock_id = ?`), key, id).Scan(&n)
    return n > 0, err
}

// DeleteExpired removes every lock whose expiry is at or before now.
func (r *LockRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
    res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM reservation_locks WHERE expires_at <= ?`), utc(now))
    if err != nil {
        return 0, err
    }
    n, err := res.RowsAffected()
    return int(n), err
}

// Count returns the number of lock rows, expired or not.
func (r *LockRepo) Count(ctx context.Context) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservation_locks`).Scan(&n)
    return n, err
}
