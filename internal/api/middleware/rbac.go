package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// RBAC lets a request through only when the caller's token carries one of
// roles. It reads the claims stored by Auth, so it must run after it.
// Rejections go through the HTTP error handler like any other error.
func RBAC(roles ...fleet.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, _ := c.Get("claims").(*ports.TokenClaims)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+string(claims.Role)+" may not perform this action")
			}
			return next(c)
		}
	}
}
