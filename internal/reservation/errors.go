package reservation

import (
    "errors"
    "fmt"

    "github.com/iliyamo/ticket-inventory/internal/ledger"
)

var (
    // ErrInvalidQuantity is returned when fewer than one ticket is requested.
    ErrInvalidQuantity = errors.New("quantity must be at least 1")
    // ErrUnauthenticated is returned when no buyer identity is supplied.
    ErrUnauthenticated = errors.New("buyer is not authenticated")
    // ErrInvalidHandle is returned for nil or incomplete handles.
    ErrInvalidHandle = errors.New("invalid reservation handle")
    // ErrAlreadyCompleted is returned when a handle is completed twice.
    ErrAlreadyCompleted = errors.New("reservation already completed")
)

// SoldOutError reports insufficient availability at one of the three
// checkpoints. RefundRequired is set when the buyer has already paid.
type SoldOutError struct {
    EventID        string
    Category       string
    Phase          string
    Requested      int
    Available      int
    Checkpoint     string
    RefundRequired bool
}

func (e *SoldOutError) Error() string {
    msg := fmt.Sprintf("sold out: %s/%s requested %d, available %d (%s)", e.EventID, e.Category, e.Requested, e.Available, e.Checkpoint)
    if e.RefundRequired {
        msg += "; refund required"
    }
    return msg
}

// ConcurrentReservationError reports lock contention. Retry shortly.
type ConcurrentReservationError struct {
    Key string
}

func (e *ConcurrentReservationError) Error() string {
    return "another reservation is in progress for " + e.Key
}

// ReservationExpiredError reports that the handle's lock was released,
// swept or taken over before the call. RefundRequired is set when a
// verified payment arrived for it anyway.
type ReservationExpiredError struct {
    TicketID       string
    RefundRequired bool
}

func (e *ReservationExpiredError) Error() string {
    msg := "reservation " + e.TicketID + " is no longer held"
    if e.RefundRequired {
        msg += "; refund required"
    }
    return msg
}

// GatewayError reports a failed, abandoned or unverifiable payment. The
// reservation has been aborted.
type GatewayError struct {
    Reason string
    Err    error
}

func (e *GatewayError) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("payment failed: %s: %v", e.Reason, e.Err)
    }
    return "payment failed: " + e.Reason
}

func (e *GatewayError) Unwrap() error { return e.Err }

// LedgerWriteError reports that the buyer paid but the ledger could not be
// written. It must never be swallowed: IntentID names the durable record
// for manual reconciliation.
type LedgerWriteError struct {
    IntentID   string
    TicketID   string
    PaymentRef string
    Err        error
}

func (e *LedgerWriteError) Error() string {
    return fmt.Sprintf("payment %s succeeded but ticket %s was not issued (intent %s): %v", e.PaymentRef, e.TicketID, e.IntentID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// Advice tells the caller what to do about an error.
type Advice string

const (
    AdviceNone           Advice = ""
    AdviceRetry          Advice = "retry"
    AdviceContactSupport Advice = "contact_support"
    AdviceInvalid        Advice = "invalid"
)

// Outcome classifies err. Anything the buyer can simply try again is
// retry; a charged buyer without a ticket is contact_support; malformed
// requests are invalid.
func Outcome(err error) Advice {
    if err == nil {
        return AdviceNone
    }
    var (
        soldOut *SoldOutError
        expired *ReservationExpiredError
        ledgerE *LedgerWriteError
        we      *ledger.WriteError
    )
    switch {
    case errors.As(err, &ledgerE), errors.As(err, &we):
        return AdviceContactSupport
    case errors.As(err, &soldOut):
        if soldOut.RefundRequired {
            return AdviceContactSupport
        }
        return AdviceRetry
    case errors.As(err, &expired):
        if expired.RefundRequired {
            return AdviceContactSupport
        }
        return AdviceRetry
    case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnauthenticated),
        errors.Is(err, ErrInvalidHandle), errors.Is(err, ErrAlreadyCompleted):
        return AdviceInvalid
    }
    return AdviceRetry
}
