package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/identity/internal/db"
	"github.com/Skotchmaster/identity/internal/logging"
	authmw "github.com/Skotchmaster/identity/internal/middleware/auth"
	"github.com/Skotchmaster/identity/internal/models"
)

type Deps struct {
	DB           *gorm.DB
	AuthHandler  *AuthHandler
	AdminHandler *AdminHandler
	LoginLimiter echo.MiddlewareFunc
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	loginMW := []echo.MiddlewareFunc{}
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, d.LoginLimiter)
	}

	for _, prefix := range []string{"/users", "/user"} {
		g := e.Group(prefix)
		g.POST("/signup", d.AuthHandler.SignUp)
		g.POST("/login", d.AuthHandler.Login, loginMW...)
		g.GET("/validate/:token", d.AuthHandler.Validate)
		g.POST("/logout", d.AuthHandler.LogOut)
	}

	if d.AdminHandler != nil {
		admin := e.Group("/admin",
			authmw.RequireToken(d.AuthHandler.Auth),
			authmw.RequireRole(models.RoleAdmin),
		)
		admin.GET("/users/:id/tokens", d.AdminHandler.ListTokens)
		admin.POST("/tokens/sweep", d.AdminHandler.Sweep)
	}
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, d.DB); err != nil {
		logging.FromContext(ctx).Error("readiness_failed", "error", err)
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
