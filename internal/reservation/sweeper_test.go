package reservation

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

func TestSweeper_RunOnce(t *testing.T) {
    locks := newMemLocks()
    clk := clock.NewFake(t0)
    ctx := context.Background()
    require.NoError(t, locks.Acquire(ctx, model.Lock{Key: "a", ID: "1", CreatedAt: t0, ExpiresAt: t0.Add(time.Minute)}))
    require.NoError(t, locks.Acquire(ctx, model.Lock{Key: "b", ID: "2", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}))

    s := NewSweeper(locks, time.Minute, clk, discard())
    n, err := s.RunOnce(ctx)
    require.NoError(t, err)
    assert.Equal(t, 0, n)

    clk.Advance(time.Minute)
    n, err = s.RunOnce(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    locks.mu.Lock()
    _, kept := locks.held["b"]
    locks.mu.Unlock()
    assert.True(t, kept)
}

func TestSweeper_Run(t *testing.T) {
    locks := newMemLocks()
    clk := clock.NewFake(t0)
    require.NoError(t, locks.Acquire(context.Background(), model.Lock{Key: "a", ID: "1", CreatedAt: t0, ExpiresAt: t0.Add(time.Minute)}))

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    s := NewSweeper(locks, 30*time.Second, clk, discard())
    go func() { s.Run(ctx); close(done) }()

    require.Eventually(t, func() bool {
        clk.Advance(30 * time.Second)
        locks.mu.Lock()
        defer locks.mu.Unlock()
        return len(locks.held) == 0
    }, time.Second, 10*time.Millisecond)

    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("sweeper did not stop")
    }
}
