package handler

import (
    "errors"
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/repository"
    "github.com/iliyamo/ticket-inventory/internal/reservation"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
    Error    string `json:"error"`
    Message  string `json:"message"`
    Advice   string `json:"advice,omitempty"`
    IntentID string `json:"intent_id,omitempty"`
}

// writeError maps engine and repository errors onto HTTP responses. A
// paid-but-unissued purchase is logged at error level with its intent id.
func writeError(c echo.Context, log *slog.Logger, err error) error {
    status, body := classify(err)
    if status >= http.StatusInternalServerError {
        log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err, "intent_id", body.IntentID)
    }
    return c.JSON(status, body)
}

func classify(err error) (int, errorBody) {
    body := errorBody{Message: err.Error(), Advice: string(reservation.Outcome(err))}
    var (
        soldOut *reservation.SoldOutError
        busy    *reservation.ConcurrentReservationError
        gateway *reservation.GatewayError
        expired *reservation.ReservationExpiredError
        ledgerE *reservation.LedgerWriteError
    )
    switch {
    case errors.As(err, &ledgerE):
        body.Error = "ledger_write_failed"
        body.IntentID = ledgerE.IntentID
        return http.StatusInternalServerError, body
    case errors.As(err, &soldOut):
        body.Error = "sold_out"
        if soldOut.RefundRequired {
            body.Error = "sold_out_refund_required"
        }
        return http.StatusConflict, body
    case errors.As(err, &busy):
        body.Error = "concurrent_reservation"
        return http.StatusConflict, body
    case errors.As(err, &expired):
        body.Error = "reservation_expired"
        return http.StatusConflict, body
    case errors.As(err, &gateway):
        body.Error = "payment_failed"
        return http.StatusPaymentRequired, body
    case errors.Is(err, reservation.ErrInvalidQuantity):
        body.Error = "invalid_quantity"
        return http.StatusBadRequest, body
    case errors.Is(err, reservation.ErrInvalidHandle):
        body.Error = "invalid_handle"
        return http.StatusBadRequest, body
    case errors.Is(err, reservation.ErrUnauthenticated):
        body.Error = "unauthenticated"
        return http.StatusUnauthorized, body
    case errors.Is(err, reservation.ErrAlreadyCompleted):
        body.Error = "already_completed"
        return http.StatusConflict, body
    case errors.Is(err, repository.ErrEventNotFound):
        body.Error = "event_not_found"
        body.Advice = ""
        return http.StatusNotFound, body
    case errors.Is(err, repository.ErrTicketNotFound):
        body.Error = "ticket_not_found"
        body.Advice = ""
        return http.StatusNotFound, body
    case errors.Is(err, repository.ErrAlreadyCheckedIn):
        body.Error = "already_checked_in"
        body.Advice = ""
        return http.StatusConflict, body
    }
    body.Error = "internal"
    body.Message = "internal error"
    return http.StatusInternalServerError, body
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg, Advice: string(reservation.AdviceInvalid)})
}
