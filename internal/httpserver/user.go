package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/logging"
	authmw "github.com/Skotchmaster/shopcart/internal/middleware/auth"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
)

type UserHTTP struct {
	Svc          *service.UserService
	CookieSecure bool
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "validation failed", "error", err)
		return err
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		return failure(l, "register_error", err)
	}

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, transport.UserResponse{ID: user.ID, Username: user.Username})
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("update_user_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_user_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		l.Warn("update_user_error", "status", 400, "reason", "validation failed", "error", err)
		return err
	}

	user, err := h.Svc.UpdateUser(ctx, id, req.Username, req.Password)
	if err != nil {
		return failure(l, "update_user_error", err)
	}

	l.Info("update_user_success")
	return c.JSON(http.StatusOK, transport.UserResponse{ID: user.ID, Username: user.Username})
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("delete_user_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Svc.DeleteUser(ctx, id); err != nil {
		return failure(l, "delete_user_error", err)
	}

	c.SetCookie(DeleteCookie(h.CookieSecure))
	l.Info("delete_user_success")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user deleted",
	})
}
