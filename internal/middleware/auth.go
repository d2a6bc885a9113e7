package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/service"
)

// principalKey is the context key the resolved Principal is stored under.
const principalKey = "principal"

// Auth returns an Echo middleware that extracts the Bearer access token,
// resolves it through AuthService.Verify and attaches the resulting
// Principal to the request context.  Every protected route goes through
// this single choke point; any verification failure — missing header,
// expired, forged, wrong kind, revoked account — answers 401 with the
// same body.
func Auth(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			p, err := auth.Verify(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// PrincipalFrom retrieves the Principal stored by Auth.  The boolean is
// false on routes that did not pass through the middleware.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// RequireRole returns a middleware that enforces that the authenticated
// principal has one of the given roles.  It assumes Auth ran earlier in
// the chain; requests without a matching role get 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !allowed[p.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
