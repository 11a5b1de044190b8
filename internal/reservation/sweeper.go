package reservation

import (
    "context"
    "log/slog"
    "time"

    "github.com/iliyamo/ticket-inventory/internal/clock"
)

// LockSweeper deletes locks whose expiry is at or before now.
type LockSweeper interface {
    DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper removes stale locks left behind by attempts whose process died
// before reaching a terminal state.
type Sweeper struct {
    store    LockSweeper
    interval time.Duration
    clock    clock.Clock
    log      *slog.Logger
}

func NewSweeper(store LockSweeper, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Sweeper {
    return &Sweeper{store: store, interval: interval, clock: clk, log: logger}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
    return s.store.DeleteExpired(ctx, s.clock.Now())
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
    t := s.clock.NewTicker(s.interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            n, err := s.RunOnce(ctx)
            if err != nil {
                s.log.Error("sweep stale locks", "error", err)
                continue
            }
            if n > 0 {
                s.log.Info("swept stale locks", "removed", n)
            }
        }
    }
}
