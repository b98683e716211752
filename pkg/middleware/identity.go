// Package middleware holds the Echo middleware shared across routes.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/models"
)

// identityKey is the Echo context key the resolved identity lives under
const identityKey = "identity"

// ResolveIdentity resolves every request to a member or guest identity
// exactly once. When the resolver mints a fresh guest id, the
// Set-Cookie side effect is attached here.
func ResolveIdentity(resolver *identity.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := resolver.Resolve(c.Request().Context(), c.Request(), c.RealIP())

			if id.SetCookie {
				c.SetCookie(resolver.NewCookie(id.GuestID))
			}

			c.Set(identityKey, id)
			if id.IsMember() {
				c.Set("user_id", id.MemberID)
				c.Set("user_email", id.Email)
				c.Set("user_plan", id.Plan)
			}
			return next(c)
		}
	}
}

// GetIdentity reads the resolved identity off the request context
func GetIdentity(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(identityKey).(identity.Identity)
	return id, ok
}

// RequireMember rejects guest callers with 401
func RequireMember() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := GetIdentity(c)
			if !ok || !id.IsMember() {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}
			return next(c)
		}
	}
}
