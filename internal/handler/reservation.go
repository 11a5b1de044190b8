package handler

import (
    "context"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/payment"
    "github.com/iliyamo/ticket-inventory/internal/reservation"
    "github.com/iliyamo/ticket-inventory/internal/utils"
)

// Reserver is the reservation engine as seen by HTTP. *reservation.Coordinator
// implements it.
type Reserver interface {
    Offer(ctx context.Context, eventID string) (*reservation.Offer, error)
    BeginReservation(ctx context.Context, req reservation.BeginRequest) (*reservation.Handle, error)
    CompletePayment(ctx context.Context, h *reservation.Handle, res payment.Result) (*ledger.Receipt, error)
    AbortReservation(ctx context.Context, h *reservation.Handle, reason string) error
}

// ReservationHandler exposes the purchase flow. Between begin and
// complete the handle travels through the client as a signed token.
type ReservationHandler struct {
    svc    Reserver
    secret string
    ttl    time.Duration
    log    *slog.Logger
}

// NewReservationHandler wires the handler. secret signs handle tokens and
// ttl bounds their lifetime; it should not be shorter than the lock TTL.
func NewReservationHandler(svc Reserver, secret string, ttl time.Duration, logger *slog.Logger) *ReservationHandler {
    return &ReservationHandler{svc: svc, secret: secret, ttl: ttl, log: logger}
}

// Offer handles GET /v1/events/:id/offer.
func (h *ReservationHandler) Offer(c echo.Context) error {
    offer, err := h.svc.Offer(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, offer)
}

type beginRequest struct {
    Category string `json:"category"`
    Quantity int    `json:"quantity"`
}

type beginResponse struct {
    Handle    string               `json:"handle"`
    TicketID  string               `json:"ticket_id"`
    Category  string               `json:"category"`
    Phase     string               `json:"phase,omitempty"`
    Quantity  int                  `json:"quantity"`
    Price     model.PriceBreakdown `json:"price"`
    Amount    int64                `json:"amount"`
    Currency  string               `json:"currency"`
    ExpiresAt time.Time            `json:"expires_at"`
}

// Begin handles POST /v1/events/:id/reservations. On 201 the client pays
// Amount with the gateway and then calls Complete or Abort with Handle.
func (h *ReservationHandler) Begin(c echo.Context) error {
    b, ok, err := getBuyer(c)
    if !ok {
        return err
    }
    var body beginRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    body.Category = strings.TrimSpace(body.Category)
    if body.Category == "" {
        return badRequest(c, "category is required")
    }
    hd, err := h.svc.BeginReservation(c.Request().Context(), reservation.BeginRequest{
        EventID:  c.Param("id"),
        Category: body.Category,
        Quantity: body.Quantity,
        Buyer:    b,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    tok, err := utils.SignPayload(h.secret, hd.TicketID, hd, h.ttl)
    if err != nil {
        // The lock is held but the client cannot continue; give it back.
        if aerr := h.svc.AbortReservation(context.WithoutCancel(c.Request().Context()), hd, "handle signing failed"); aerr != nil {
            h.log.Error("abort after signing failure", "ticket_id", hd.TicketID, "error", aerr)
        }
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, beginResponse{
        Handle:    tok.Token,
        TicketID:  hd.TicketID,
        Category:  hd.Category,
        Phase:     hd.Phase,
        Quantity:  hd.Quantity,
        Price:     hd.Price,
        Amount:    hd.Price.Total,
        Currency:  hd.Currency,
        ExpiresAt: hd.ExpiresAt,
    })
}

type completeRequest struct {
    Handle     string            `json:"handle"`
    Success    bool              `json:"success"`
    OrderRef   string            `json:"order_ref"`
    PaymentRef string            `json:"payment_ref"`
    Signature  string            `json:"signature"`
    Reason     string            `json:"reason"`
    Metadata   map[string]string `json:"metadata"`
}

// Complete handles POST /v1/reservations/complete with the gateway's
// callback fields.
func (h *ReservationHandler) Complete(c echo.Context) error {
    var body completeRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    hd, ok, err := h.handle(c, body.Handle)
    if !ok {
        return err
    }
    receipt, err := h.svc.CompletePayment(c.Request().Context(), hd, payment.Result{
        Success:    body.Success,
        OrderRef:   body.OrderRef,
        PaymentRef: body.PaymentRef,
        Signature:  body.Signature,
        Reason:     body.Reason,
        Metadata:   body.Metadata,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, receipt)
}

type abortRequest struct {
    Handle string `json:"handle"`
    Reason string `json:"reason"`
}

// Abort handles POST /v1/reservations/abort, used when the client gives up
// before paying.
func (h *ReservationHandler) Abort(c echo.Context) error {
    var body abortRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    hd, ok, err := h.handle(c, body.Handle)
    if !ok {
        return err
    }
    if err := h.svc.AbortReservation(c.Request().Context(), hd, body.Reason); err != nil {
        return writeError(c, h.log, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// handle decodes a signed handle token and checks it belongs to the caller.
func (h *ReservationHandler) handle(c echo.Context, raw string) (*reservation.Handle, bool, error) {
    b, ok, err := getBuyer(c)
    if !ok {
        return nil, false, err
    }
    if raw == "" {
        return nil, false, badRequest(c, "handle is required")
    }
    var hd reservation.Handle
    if _, err := utils.ParsePayload(h.secret, raw, &hd); err != nil {
        return nil, false, writeError(c, h.log, reservation.ErrInvalidHandle)
    }
    if hd.Buyer.ID != b.ID {
        return nil, false, c.JSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: "reservation belongs to another buyer"})
    }
    return &hd, true, nil
}
