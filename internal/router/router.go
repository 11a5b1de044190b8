package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory/internal/handler"
	"github.com/iliyamo/ticket-inventory/internal/middleware"
)

// Deps carries everything the route table needs.
type Deps struct {
	JWTSecret    string
	Ready        handler.Pinger
	Reservations *handler.ReservationHandler
	Tickets      *handler.TicketHandler
	// RateLimit guards reservation creation. Nil applies no limit.
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers endpoints that need no authentication: health
// checks and the public offer view.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Ready != nil {
		e.GET("/readyz", handler.Ready(d.Ready))
	}
	e.GET("/v1/events/:id/offer", d.Reservations.Offer)
}

// RegisterBuyer registers the purchase flow and the buyer's own views
// under /v1. Every route requires a valid access token.
func RegisterBuyer(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

	begin := []echo.MiddlewareFunc{}
	if d.RateLimit != nil {
		begin = append(begin, d.RateLimit)
	}
	g.POST("/events/:id/reservations", d.Reservations.Begin, begin...)
	g.POST("/reservations/complete", d.Reservations.Complete)
	g.POST("/reservations/abort", d.Reservations.Abort)

	g.GET("/my-orders", d.Tickets.MyOrders)
	g.GET("/my-tickets", d.Tickets.MyTickets)
	g.GET("/tickets/:id", d.Tickets.GetTicket)
}

// RegisterAdmin registers staff endpoints under /v1/admin. They require the
// ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(handler.RoleAdmin))
	g.POST("/tickets/:id/check-in", d.Tickets.CheckIn)
	g.GET("/tickets/:id/transactions", d.Tickets.Transactions)
	g.GET("/intents", d.Tickets.Intents)
}

// Register installs the full route table.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterBuyer(e, d)
	RegisterAdmin(e, d)
}
