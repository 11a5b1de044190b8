package handler

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/middleware"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/repository"
)

// TicketStore reads and checks in issued tickets.
type TicketStore interface {
    GetByID(ctx context.Context, id string) (*model.Ticket, error)
    ListByBuyer(ctx context.Context, buyerID string) ([]model.Ticket, error)
    CheckIn(ctx context.Context, id string, at time.Time) (*model.Ticket, error)
}

// OrderStore lists a buyer's orders.
type OrderStore interface {
    ListByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
}

// AuditStore backs the reconciliation views.
type AuditStore interface {
    ListIntents(ctx context.Context, status string, limit int) ([]model.Intent, error)
    ListTransactions(ctx context.Context, ticketID string) ([]model.Transaction, error)
}

// TicketHandler serves buyers' orders and tickets and the staff endpoints.
type TicketHandler struct {
    tickets TicketStore
    orders  OrderStore
    audit   AuditStore
    clock   clock.Clock
    log     *slog.Logger
}

func NewTicketHandler(tickets TicketStore, orders OrderStore, audit AuditStore, clk clock.Clock, logger *slog.Logger) *TicketHandler {
    return &TicketHandler{tickets: tickets, orders: orders, audit: audit, clock: clk, log: logger}
}

// MyOrders handles GET /v1/my-orders.
func (h *TicketHandler) MyOrders(c echo.Context) error {
    b, ok, err := getBuyer(c)
    if !ok {
        return err
    }
    orders, err := h.orders.ListByBuyer(c.Request().Context(), b.ID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    if orders == nil {
        orders = []model.Order{}
    }
    return c.JSON(http.StatusOK, orders)
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
    b, ok, err := getBuyer(c)
    if !ok {
        return err
    }
    tickets, err := h.tickets.ListByBuyer(c.Request().Context(), b.ID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    if tickets == nil {
        tickets = []model.Ticket{}
    }
    return c.JSON(http.StatusOK, tickets)
}

// GetTicket handles GET /v1/tickets/:id. Buyers see only their own
// tickets; someone else's ticket is reported as not found.
func (h *TicketHandler) GetTicket(c echo.Context) error {
    b, ok, err := getBuyer(c)
    if !ok {
        return err
    }
    t, err := h.tickets.GetByID(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.log, err)
    }
    if t.BuyerID != b.ID && middleware.Role(c) != RoleAdmin {
        return writeError(c, h.log, repository.ErrTicketNotFound)
    }
    return c.JSON(http.StatusOK, t)
}

// CheckIn handles POST /v1/admin/tickets/:id/check-in.
func (h *TicketHandler) CheckIn(c echo.Context) error {
    t, err := h.tickets.CheckIn(c.Request().Context(), c.Param("id"), h.clock.Now())
    if err != nil {
        if errors.Is(err, repository.ErrAlreadyCheckedIn) && t != nil {
            return c.JSON(http.StatusConflict, echo.Map{"error": "already_checked_in", "message": err.Error(), "ticket": t})
        }
        return writeError(c, h.log, err)
    }
    h.log.Info("ticket checked in", "ticket_id", t.ID, "event_id", t.EventID)
    return c.JSON(http.StatusOK, t)
}

// Intents handles GET /v1/admin/intents?status=&limit=. Intents that are
// not COMPLETE are buyers who paid without receiving a ticket.
func (h *TicketHandler) Intents(c echo.Context) error {
    limit := 0
    if s := c.QueryParam("limit"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n < 1 {
            return badRequest(c, "limit must be a positive integer")
        }
        limit = n
    }
    switch status := c.QueryParam("status"); status {
    case "", model.IntentPending, model.IntentComplete, model.IntentFailed, model.IntentAbandoned:
        intents, err := h.audit.ListIntents(c.Request().Context(), status, limit)
        if err != nil {
            return writeError(c, h.log, err)
        }
        if intents == nil {
            intents = []model.Intent{}
        }
        return c.JSON(http.StatusOK, intents)
    default:
        return badRequest(c, "unknown status "+strconv.Quote(status))
    }
}

// Transactions handles GET /v1/admin/tickets/:id/transactions.
func (h *TicketHandler) Transactions(c echo.Context) error {
    txns, err := h.audit.ListTransactions(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.log, err)
    }
    if txns == nil {
        txns = []model.Transaction{}
    }
    return c.JSON(http.StatusOK, txns)
}
