package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// ctxActor extracts the caller injected by the Auth middleware.
func ctxActor(c echo.Context) (ports.Actor, error) {
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ := c.Get("role").(string)
	return ports.Actor{UserID: userID, Role: fleet.Role(role)}, nil
}

// ctxClaims returns the validated token claims.
func ctxClaims(c echo.Context) (*ports.TokenClaims, error) {
	claims, _ := c.Get("claims").(*ports.TokenClaims)
	if claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}
