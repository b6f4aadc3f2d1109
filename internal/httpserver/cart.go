package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/logging"
	authmw "github.com/Skotchmaster/shopcart/internal/middleware/auth"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("get_cart_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	lines, err := h.Svc.ViewCart(ctx, id)
	if err != nil {
		return failure(l, "get_cart_error", err)
	}

	l.Info("cart successfully got", "lines", len(lines))
	return c.JSON(http.StatusOK, transport.ToCartLines(lines))
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_to_cart")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("add_to_cart_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := parseID(c)
	if err != nil {
		l.Warn("add_to_cart_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req transport.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	line, err := h.Svc.AddToCart(ctx, id, productID, req.Quantity)
	if err != nil {
		return failure(l, "add_to_cart_error", err)
	}

	l.Info("item added successfully to cart", "product_id", productID)
	return c.JSON(http.StatusOK, transport.ToCartLine(*line))
}

func (h *CartHTTP) DeleteFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete_from_cart")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("delete_from_cart_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := parseID(c)
	if err != nil {
		l.Warn("delete_from_cart_error", "status", 400, "reason", "id is not a positive integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	if err := h.Svc.RemoveFromCart(ctx, id, productID); err != nil {
		return failure(l, "delete_from_cart_error", err)
	}

	l.Info("item removed from cart", "product_id", productID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "item removed from cart",
	})
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	id, ok := authmw.IdentityFrom(c)
	if !ok {
		l.Error("checkout_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	removed, err := h.Svc.Checkout(ctx, id)
	if err != nil {
		return failure(l, "checkout_error", err)
	}

	l.Info("checkout_success", "removed_items", removed)
	return c.JSON(http.StatusOK, transport.CheckoutResponse{
		Message:      "checkout complete",
		RemovedItems: removed,
	})
}
