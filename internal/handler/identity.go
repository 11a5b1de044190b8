package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-inventory/internal/middleware"
    "github.com/iliyamo/ticket-inventory/internal/model"
)

// RoleAdmin is the staff role allowed to check tickets in and read the
// reconciliation views.
const RoleAdmin = "ADMIN"

// getBuyer extracts the authenticated buyer placed in the context by
// middleware.JWTAuth. ok is false and a 401 has been written when absent.
func getBuyer(c echo.Context) (model.Buyer, bool, error) {
    b, ok := middleware.Buyer(c)
    if !ok {
        return model.Buyer{}, false, c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "buyer identity required"})
    }
    return b, true, nil
}
