package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/model"
)

// Buyer returns the authenticated buyer stored by JWTAuth.
func Buyer(c echo.Context) (model.Buyer, bool) {
    b, ok := c.Get(ctxBuyer).(model.Buyer)
    return b, ok && b.ID != ""
}

// Role returns the role claim stored by JWTAuth, or "".
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// buyerID is the rate-limit identity: the buyer id, or "guest".
func buyerID(c echo.Context) string {
    if b, ok := Buyer(c); ok {
        return b.ID
    }
    return "guest"
}
