package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity/internal/logging"
	"github.com/Skotchmaster/identity/internal/models"
)

const userKey = "user"

type Validator interface {
	ValidateToken(ctx context.Context, value string) (*models.User, bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, value, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// RequireToken rejects requests without a currently valid bearer token and
// stores the token owner on the echo context.
func RequireToken(v Validator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("mw", "require_token")

			token := BearerToken(c)
			if token == "" {
				l.Warn("auth_failed", "status", 401, "reason", "missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			user, ok, err := v.ValidateToken(ctx, token)
			if err != nil {
				l.Error("auth_error", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			if !ok {
				l.Warn("auth_failed", "status", 401, "reason", "invalid token")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// RequireRole must run after RequireToken.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil || !user.HasRole(role) {
				logging.FromContext(c.Request().Context()).Warn("auth_forbidden", "status", 403, "role", role)
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		}
	}
}

func CurrentUser(c echo.Context) *models.User {
	u, _ := c.Get(userKey).(*models.User)
	return u
}
