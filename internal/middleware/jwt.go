package middleware // reusable HTTP middleware for the reservation API

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ctxBuyer = "buyer"
    ctxRole  = "role"
)

// JWTAuth validates a Bearer access token issued by the identity service
// and stores the buyer it names under "buyer" and its role under "role".
// The engine does not issue these tokens; it only trusts the shared secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "invalid token"})
            }
            c.Set(ctxBuyer, model.Buyer{ID: claims.Subject, Name: claims.Name, Email: claims.Email})
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}
