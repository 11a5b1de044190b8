package reservation

import (
    "errors"
    "fmt"
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

func TestPrice(t *testing.T) {
    assert.Equal(t, model.PriceBreakdown{UnitPrice: 5000, Subtotal: 10000, Tax: 500, Fee: 500, Total: 11000}, Price(5000, 2))

    // 5% of 1010 is 50.5, rounded half-up.
    p := Price(1010, 1)
    assert.Equal(t, int64(51), p.Tax)
    assert.Equal(t, int64(51), p.Fee)
    assert.Equal(t, int64(1112), p.Total)

    // 5% of 1009 is 50.45.
    assert.Equal(t, int64(50), Price(1009, 1).Tax)
    assert.Equal(t, int64(0), Price(0, 3).Total)
}

func TestOutcome(t *testing.T) {
    cases := []struct {
        err  error
        want Advice
    }{
        {nil, AdviceNone},
        {&SoldOutError{Checkpoint: "availability"}, AdviceRetry},
        {&SoldOutError{Checkpoint: "post-payment", RefundRequired: true}, AdviceContactSupport},
        {&ConcurrentReservationError{Key: "k"}, AdviceRetry},
        {&GatewayError{Reason: "declined"}, AdviceRetry},
        {&LedgerWriteError{IntentID: "i"}, AdviceContactSupport},
        {fmt.Errorf("commit: %w", &ledger.WriteError{IntentID: "i", Err: errors.New("db down")}), AdviceContactSupport},
        {ErrInvalidQuantity, AdviceInvalid},
        {ErrUnauthenticated, AdviceInvalid},
        {ErrInvalidHandle, AdviceInvalid},
        {ErrAlreadyCompleted, AdviceInvalid},
        {errors.New("catalog unavailable"), AdviceRetry},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.want, Outcome(tc.err), "%v", tc.err)
    }
}

func TestLedgerWriteError_Unwraps(t *testing.T) {
    cause := errors.New("disk full")
    err := error(&LedgerWriteError{IntentID: "i-1", TicketID: "TKT-1", PaymentRef: "pay_1", Err: cause})
    assert.ErrorIs(t, err, cause)
    assert.Contains(t, err.Error(), "i-1")
    assert.Contains(t, err.Error(), "pay_1")
}
