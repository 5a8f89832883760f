package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity/internal/logging"
	"github.com/Skotchmaster/identity/internal/service"
)

type AdminHandler struct {
	Admin   *service.AdminService
	Sweeper *service.Sweeper
}

func (h *AdminHandler) ListTokens(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_list_tokens")

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	res, err := h.Admin.TokensForUser(ctx, userID, page, size)
	if err != nil {
		l.Error("list_tokens_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	items := make([]TokenInfo, 0, len(res.Items))
	for i := range res.Items {
		t := &res.Items[i]
		items = append(items, TokenInfo{
			ID:        t.ID,
			ExpiryAt:  t.ExpiryAt,
			Revoked:   t.Revoked,
			RevokedAt: t.RevokedAt,
			CreatedAt: t.CreatedAt,
			Status:    h.Admin.StatusOf(t),
		})
	}
	return c.JSON(http.StatusOK, TokenListResponse{Total: res.Total, Page: res.Page, Size: res.Size, Items: items})
}

func (h *AdminHandler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_sweep")

	n, err := h.Sweeper.SweepOnce(ctx)
	if err != nil {
		l.Error("sweep_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
