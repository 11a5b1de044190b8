package reservation

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/ticket-inventory/internal/lock"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/payment"
)

func begin(t *testing.T, h *harness, category string, qty int) *Handle {
    t.Helper()
    hd, err := h.coord.BeginReservation(context.Background(), BeginRequest{EventID: "evt-1", Category: category, Quantity: qty, Buyer: buyer})
    require.NoError(t, err)
    return hd
}

func TestHappyPath(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    ctx := context.Background()

    hd := begin(t, h, "GA", 2)
    assert.Equal(t, StatePaymentPending, hd.State)
    assert.Equal(t, "Phase1", hd.Phase)
    assert.Equal(t, model.PriceBreakdown{UnitPrice: 5000, Subtotal: 10000, Tax: 500, Fee: 500, Total: 11000}, hd.Price)
    assert.Equal(t, lock.RowKey("evt-1", "GA", "Phase1"), hd.LockKey)

    rc, err := h.coord.CompletePayment(ctx, hd, h.paid("1"))
    require.NoError(t, err)

    assert.Equal(t, []string{"GA:50:1:Phase1"}, h.db.categories("evt-1"))
    orders, tickets := h.db.counts()
    assert.Equal(t, 1, orders)
    assert.Equal(t, 1, tickets)
    assert.Len(t, h.db.transactionsWith(model.TransactionSuccess), 1)
    assert.Equal(t, hd.TicketID, rc.Ticket.ID)
    assert.Equal(t, "pay_1", rc.Order.PaymentRef)
    assert.Equal(t, int64(11000), rc.Ticket.AmountPaid)
    assert.Equal(t, StateReleased, hd.State)
    h.locks.assertHygiene(t)
}

func TestRaceToLastTicket(t *testing.T) {
    for _, scope := range []lock.Scope{lock.ScopeRow, lock.ScopeTicket} {
        t.Run(string(scope), func(t *testing.T) {
            h := newHarness(t, scope, event("GA:50:1:Phase1"))
            var wg sync.WaitGroup
            errs := make([]error, 2)
            for i := range errs {
                wg.Add(1)
                go func(i int) {
                    defer wg.Done()
                    hd, err := h.coord.BeginReservation(context.Background(), BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 1, Buyer: buyer})
                    if err != nil {
                        errs[i] = err
                        return
                    }
                    _, errs[i] = h.coord.CompletePayment(context.Background(), hd, h.paid(hd.TicketID))
                }(i)
            }
            wg.Wait()

            successes := 0
            for _, err := range errs {
                if err == nil {
                    successes++
                    continue
                }
                var soldOut *SoldOutError
                var busy *ConcurrentReservationError
                assert.True(t, errors.As(err, &soldOut) || errors.As(err, &busy), "unexpected error %v", err)
            }
            assert.Equal(t, 1, successes)
            assert.Equal(t, []string{"GA:50:0:Phase1"}, h.db.categories("evt-1"))
            h.locks.assertHygiene(t)
        })
    }
}

func TestPaymentAbandoned(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))

    hd := begin(t, h, "GA", 2)
    _, err := h.coord.CompletePayment(context.Background(), hd, payment.Result{Success: false, Reason: "checkout closed"})

    var gw *GatewayError
    require.ErrorAs(t, err, &gw)
    assert.Equal(t, "checkout closed", gw.Reason)
    assert.Equal(t, AdviceRetry, Outcome(err))
    assert.Equal(t, []string{"GA:50:3:Phase1"}, h.db.categories("evt-1"))
    failed := h.db.transactionsWith(model.TransactionFailed)
    require.Len(t, failed, 1)
    assert.Equal(t, "checkout closed", failed[0].Reason)
    assert.Equal(t, hd.TicketID, failed[0].TicketID)
    h.locks.assertHygiene(t)
}

func TestAbortReservation(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))

    hd := begin(t, h, "GA", 1)
    require.NoError(t, h.coord.AbortReservation(context.Background(), hd, "script failed to load"))

    assert.Equal(t, StateReleased, hd.State)
    assert.Equal(t, []string{"GA:50:3:Phase1"}, h.db.categories("evt-1"))
    failed := h.db.transactionsWith(model.TransactionFailed)
    require.Len(t, failed, 1)
    assert.Equal(t, "script failed to load", failed[0].Reason)
    h.locks.assertHygiene(t)

    // The row is free again.
    hd2 := begin(t, h, "GA", 1)
    require.NoError(t, h.coord.AbortReservation(context.Background(), hd2, ""))
    h.locks.assertHygiene(t)
}

func TestBeginReservation_Rejections(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1", "VIP:150:0:Phase1", "OLD:10:5:Early"))
    ctx := context.Background()

    _, err := h.coord.BeginReservation(ctx, BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 0, Buyer: buyer})
    assert.ErrorIs(t, err, ErrInvalidQuantity)
    assert.Equal(t, AdviceInvalid, Outcome(err))

    _, err = h.coord.BeginReservation(ctx, BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 1})
    assert.ErrorIs(t, err, ErrUnauthenticated)

    for _, tc := range []struct {
        category string
        qty      int
    }{{"GA", 4}, {"VIP", 1}, {"OLD", 1}, {"NOPE", 1}} {
        _, err = h.coord.BeginReservation(ctx, BeginRequest{EventID: "evt-1", Category: tc.category, Quantity: tc.qty, Buyer: buyer})
        var soldOut *SoldOutError
        require.ErrorAs(t, err, &soldOut, tc.category)
        assert.Equal(t, "availability", soldOut.Checkpoint)
        assert.False(t, soldOut.RefundRequired)
    }
    h.locks.assertHygiene(t)
}

func TestBeginReservation_LockContention(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    first := begin(t, h, "GA", 1)

    _, err := h.coord.BeginReservation(context.Background(), BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 1, Buyer: buyer})
    var busy *ConcurrentReservationError
    require.ErrorAs(t, err, &busy)
    assert.Equal(t, first.LockKey, busy.Key)
    assert.Equal(t, AdviceRetry, Outcome(err))

    // A stale lock is taken over once its TTL has passed.
    h.clock.Advance(5 * time.Minute)
    second := begin(t, h, "GA", 1)
    require.NoError(t, h.coord.AbortReservation(context.Background(), second, "test"))
    assert.ErrorIs(t, h.coord.AbortReservation(context.Background(), first, "test"), ErrInvalidHandle)
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)
}

func TestBeginReservation_TicketScopeDoesNotSerialize(t *testing.T) {
    h := newHarness(t, lock.ScopeTicket, event("GA:50:3:Phase1"))
    a := begin(t, h, "GA", 1)
    b := begin(t, h, "GA", 1)
    assert.NotEqual(t, a.LockKey, b.LockKey)
    require.NoError(t, h.coord.AbortReservation(context.Background(), a, "test"))
    require.NoError(t, h.coord.AbortReservation(context.Background(), b, "test"))
    h.locks.assertHygiene(t)
}

func TestBeginReservation_RevalidatesUnderLock(t *testing.T) {
    h := newHarness(t, lock.ScopeTicket, event("GA:50:2:Phase1"))
    h.locks.onAcquire = func(model.Lock) { h.db.setCategories("evt-1", "GA:50:1:Phase1") }

    _, err := h.coord.BeginReservation(context.Background(), BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 2, Buyer: buyer})
    var soldOut *SoldOutError
    require.ErrorAs(t, err, &soldOut)
    assert.Equal(t, "post-lock", soldOut.Checkpoint)
    h.locks.assertHygiene(t)
}

func TestCompletePayment_SoldOutWhilePaying(t *testing.T) {
    h := newHarness(t, lock.ScopeTicket, event("GA:50:2:Phase1"))
    hd := begin(t, h, "GA", 2)
    h.db.setCategories("evt-1", "GA:50:1:Phase1")

    _, err := h.coord.CompletePayment(context.Background(), hd, h.paid("x"))
    var soldOut *SoldOutError
    require.ErrorAs(t, err, &soldOut)
    assert.True(t, soldOut.RefundRequired)
    assert.Equal(t, "post-payment", soldOut.Checkpoint)
    assert.Equal(t, AdviceContactSupport, Outcome(err))

    refunds := h.db.transactionsWith(model.TransactionRefundRequired)
    require.Len(t, refunds, 1)
    assert.Equal(t, "pay_x", refunds[0].PaymentRef)
    assert.Equal(t, []string{"GA:50:1:Phase1"}, h.db.categories("evt-1"))
    h.locks.assertHygiene(t)
}

func TestCompletePayment_UnverifiedSignature(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:2:Phase1"))
    hd := begin(t, h, "GA", 1)

    res := h.paid("x")
    res.PaymentRef = "pay_forged"
    _, err := h.coord.CompletePayment(context.Background(), hd, res)
    var gw *GatewayError
    require.ErrorAs(t, err, &gw)
    assert.ErrorIs(t, err, payment.ErrBadSignature)
    assert.Equal(t, []string{"GA:50:2:Phase1"}, h.db.categories("evt-1"))
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)
    h.locks.assertHygiene(t)
}

func TestCompletePayment_LedgerFailure(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:2:Phase1"))
    h.media.err = errors.New("bucket unavailable")
    hd := begin(t, h, "GA", 1)

    _, err := h.coord.CompletePayment(context.Background(), hd, h.paid("x"))
    var lw *LedgerWriteError
    require.ErrorAs(t, err, &lw)
    assert.NotEmpty(t, lw.IntentID)
    assert.Equal(t, "pay_x", lw.PaymentRef)
    assert.Equal(t, AdviceContactSupport, Outcome(err))

    h.db.mu.Lock()
    intent := h.db.intents[lw.IntentID]
    h.db.mu.Unlock()
    assert.Equal(t, model.IntentFailed, intent.Status)
    assert.Equal(t, []string{"GA:50:2:Phase1"}, h.db.categories("evt-1"))
    h.locks.assertHygiene(t)
}

func TestCompletePayment_Replay(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    hd := begin(t, h, "GA", 1)
    replay := *hd
    res := h.paid("1")

    _, err := h.coord.CompletePayment(context.Background(), hd, res)
    require.NoError(t, err)
    _, err = h.coord.CompletePayment(context.Background(), &replay, res)
    assert.ErrorIs(t, err, ErrAlreadyCompleted)
    assert.Equal(t, []string{"GA:50:2:Phase1"}, h.db.categories("evt-1"))
}

func TestCompletePayment_AfterAbort(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    ctx := context.Background()
    hd := begin(t, h, "GA", 1)
    require.NoError(t, h.coord.AbortReservation(ctx, hd, "test"))

    _, err := h.coord.CompletePayment(ctx, hd, h.paid("1"))
    assert.ErrorIs(t, err, ErrInvalidHandle)
    assert.ErrorIs(t, h.coord.AbortReservation(ctx, hd, "again"), ErrInvalidHandle)
    assert.Equal(t, []string{"GA:50:3:Phase1"}, h.db.categories("evt-1"))
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)
    h.locks.assertHygiene(t)
}

// tokenCopy is what the handler rebuilds from a signed handle token.
func tokenCopy(hd *Handle) *Handle {
    cp := *hd
    cp.State = ""
    return &cp
}

func TestCompletePayment_ReusedTokenAfterAbort(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    ctx := context.Background()
    hd := begin(t, h, "GA", 1)
    token := tokenCopy(hd)
    require.NoError(t, h.coord.AbortReservation(ctx, hd, "test"))
    other := begin(t, h, "GA", 1)

    _, err := h.coord.CompletePayment(ctx, token, h.paid("1"))
    var expired *ReservationExpiredError
    require.ErrorAs(t, err, &expired)
    assert.True(t, expired.RefundRequired)
    assert.Equal(t, AdviceContactSupport, Outcome(err))
    assert.Equal(t, StateReleased, token.State)

    assert.Equal(t, []string{"GA:50:3:Phase1"}, h.db.categories("evt-1"))
    orders, _ := h.db.counts()
    assert.Zero(t, orders)
    assert.Empty(t, h.db.transactionsWith(model.TransactionSuccess))
    refunds := h.db.transactionsWith(model.TransactionRefundRequired)
    require.Len(t, refunds, 1)
    assert.Equal(t, "pay_1", refunds[0].PaymentRef)

    // The other buyer's lock is untouched.
    held, err := h.locks.Held(ctx, other.LockKey, other.LockID)
    require.NoError(t, err)
    assert.True(t, held)
    require.NoError(t, h.coord.AbortReservation(ctx, other, "test"))
    h.locks.assertHygiene(t)
}

func TestCompletePayment_ReusedTokenAfterGatewayFailure(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    ctx := context.Background()
    hd := begin(t, h, "GA", 2)
    token := tokenCopy(hd)

    _, err := h.coord.CompletePayment(ctx, hd, payment.Result{Success: false, Reason: "declined"})
    var gw *GatewayError
    require.ErrorAs(t, err, &gw)

    _, err = h.coord.CompletePayment(ctx, tokenCopy(token), payment.Result{Success: false, Reason: "declined"})
    var expired *ReservationExpiredError
    require.ErrorAs(t, err, &expired)
    assert.False(t, expired.RefundRequired)
    assert.Equal(t, AdviceRetry, Outcome(err))

    _, err = h.coord.CompletePayment(ctx, token, h.paid("2"))
    require.ErrorAs(t, err, &expired)
    assert.True(t, expired.RefundRequired)

    assert.Equal(t, []string{"GA:50:3:Phase1"}, h.db.categories("evt-1"))
    orders, tickets := h.db.counts()
    assert.Zero(t, orders)
    assert.Zero(t, tickets)
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)
    assert.Len(t, h.db.transactionsWith(model.TransactionRefundRequired), 1)
    h.locks.assertHygiene(t)
}

func TestAbortReservation_ReusedToken(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    ctx := context.Background()

    hd := begin(t, h, "GA", 1)
    token := tokenCopy(hd)
    require.NoError(t, h.coord.AbortReservation(ctx, hd, "test"))
    assert.ErrorIs(t, h.coord.AbortReservation(ctx, token, "again"), ErrInvalidHandle)
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)

    paid := begin(t, h, "GA", 1)
    token = tokenCopy(paid)
    _, err := h.coord.CompletePayment(ctx, paid, h.paid("1"))
    require.NoError(t, err)
    assert.ErrorIs(t, h.coord.AbortReservation(ctx, token, "late"), ErrAlreadyCompleted)
    assert.ErrorIs(t, h.coord.AbortReservation(ctx, paid, "late"), ErrAlreadyCompleted)
    _, err = h.coord.CompletePayment(ctx, paid, h.paid("1"))
    assert.ErrorIs(t, err, ErrAlreadyCompleted)
    assert.Len(t, h.db.transactionsWith(model.TransactionFailed), 1)
    h.locks.assertHygiene(t)
}

func TestHandle_StateNotSerialized(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    hd := begin(t, h, "GA", 1)

    raw, err := json.Marshal(hd)
    require.NoError(t, err)
    assert.NotContains(t, string(raw), `"state"`)
    var decoded Handle
    require.NoError(t, json.Unmarshal(raw, &decoded))
    assert.Equal(t, State(""), decoded.State)
    assert.Equal(t, hd.LockID, decoded.LockID)
    require.NoError(t, h.coord.AbortReservation(context.Background(), &decoded, "test"))
    h.locks.assertHygiene(t)
}

func TestCompletePayment_InvalidHandle(t *testing.T) {
    h := newHarness(t, lock.ScopeRow, event("GA:50:3:Phase1"))
    _, err := h.coord.CompletePayment(context.Background(), nil, payment.Result{})
    assert.ErrorIs(t, err, ErrInvalidHandle)
    assert.ErrorIs(t, h.coord.AbortReservation(context.Background(), &Handle{}, "x"), ErrInvalidHandle)
}

func TestNoOversellUnderConcurrency(t *testing.T) {
    const stock, buyers = 5, 20
    for _, scope := range []lock.Scope{lock.ScopeRow, lock.ScopeTicket} {
        t.Run(string(scope), func(t *testing.T) {
            h := newHarness(t, scope, event("GA:50:5:Phase1"))
            var (
                wg        sync.WaitGroup
                mu        sync.Mutex
                committed int
            )
            for i := 0; i < buyers; i++ {
                wg.Add(1)
                go func() {
                    defer wg.Done()
                    hd, err := h.coord.BeginReservation(context.Background(), BeginRequest{EventID: "evt-1", Category: "GA", Quantity: 1, Buyer: buyer})
                    if err != nil {
                        return
                    }
                    if _, err := h.coord.CompletePayment(context.Background(), hd, h.paid(hd.TicketID)); err == nil {
                        mu.Lock()
                        committed++
                        mu.Unlock()
                    }
                }()
            }
            wg.Wait()

            rows := h.db.categories("evt-1")
            require.Len(t, rows, 1)
            var remaining int
            switch rows[0] {
            case "GA:50:0:Phase1", "GA:50:1:Phase1", "GA:50:2:Phase1", "GA:50:3:Phase1", "GA:50:4:Phase1", "GA:50:5:Phase1":
                remaining = int(rows[0][6] - '0')
            default:
                t.Fatalf("unexpected row %q", rows[0])
            }
            assert.LessOrEqual(t, committed, stock)
            assert.Equal(t, stock, committed+remaining)
            orders, _ := h.db.counts()
            assert.Equal(t, committed, orders)
            if scope == lock.ScopeTicket {
                assert.Equal(t, stock, committed)
            }
            h.locks.assertHygiene(t)
        })
    }
}

func TestOffer(t *testing.T) {
    ev := model.Event{ID: "evt-1", Name: "Fest", Phases: []string{"Early:January 1, 2025:January 3, 2025", "Regular:January 3, 2025:February 1, 2025"},
        Categories: []string{"VIP:100:5:Early", "VIP:150:10:Regular", "GA:50:20:Early"}}
    h := newHarness(t, lock.ScopeRow, ev)

    offer, err := h.coord.Offer(context.Background(), "evt-1")
    require.NoError(t, err)
    assert.True(t, offer.OnSale)
    assert.Equal(t, "Regular", offer.Phase)
    require.Len(t, offer.Options, 1)
    assert.Equal(t, "VIP", offer.Options[0].CategoryName)
    assert.Equal(t, int64(15000), offer.Options[0].UnitPrice)
    assert.Equal(t, int64(16500), offer.Options[0].Price.Total)
}
