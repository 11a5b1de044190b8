package ledger

import (
    "context"
    "log/slog"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// IntentStore is the slice of the store the reconciler needs. Abandon
// only transitions intents still PENDING and reports whether it did.
type IntentStore interface {
    PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Intent, error)
    Abandon(ctx context.Context, id, detail string, at time.Time) (bool, error)
}

const reconcileBatch = 100

// Reconciler finds purchase intents that never reached COMPLETE or FAILED
// (the process died between intent and commit) and marks them ABANDONED
// so they surface for manual reconciliation.
type Reconciler struct {
    store    IntentStore
    timeout  time.Duration
    interval time.Duration
    clock    clock.Clock
    log      *slog.Logger
}

func NewReconciler(store IntentStore, timeout, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Reconciler {
    return &Reconciler{store: store, timeout: timeout, interval: interval, clock: clk, log: logger}
}

// RunOnce abandons every intent PENDING for longer than the timeout and
// returns how many it transitioned.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
    now := r.clock.Now()
    cutoff := now.Add(-r.timeout)
    n := 0
    for {
        stale, err := r.store.PendingBefore(ctx, cutoff, reconcileBatch)
        if err != nil {
            return n, err
        }
        progressed := false
        for _, in := range stale {
            ok, err := r.store.Abandon(ctx, in.ID, "no ledger commit within "+r.timeout.String(), now)
            if err != nil {
                return n, err
            }
            if !ok {
                continue
            }
            progressed = true
            n++
            r.log.Error("purchase intent abandoned; manual reconciliation required", intentAttrs(in)...)
        }
        if len(stale) < reconcileBatch || !progressed {
            return n, nil
        }
    }
}

// Run calls RunOnce every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
    t := r.clock.NewTicker(r.interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            if n, err := r.RunOnce(ctx); err != nil {
                r.log.Error("reconcile intents", "error", err)
            } else if n > 0 {
                r.log.Info("reconciled intents", "abandoned", n)
            }
        }
    }
}
