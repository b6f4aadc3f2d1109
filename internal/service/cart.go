package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/session"
)

const defaultQuantity = 1

type CartService struct {
	Users    repo.UserRepository
	Products repo.ProductRepository
	Cart     repo.CartRepository
	Events   events.Publisher
}

// AddToCart creates the (user, product) line. quantity nil means one.
func (s *CartService) AddToCart(ctx context.Context, id session.Identity, productID uint, quantity *int) (*repo.CartLine, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add", "user_id", id.UserID, "product_id", productID)

	qty := defaultQuantity
	if quantity != nil {
		qty = *quantity
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}

	user, err := s.Users.GetUserByID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("user %d does not exist: %w", id.UserID, ErrInvalidInput)
	}
	if err != nil {
		l.Error("add_to_cart_error", "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("lookup user: %w", ErrInternal)
	}

	product, err := s.Products.GetProduct(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("product %d does not exist: %w", productID, ErrInvalidInput)
	}
	if err != nil {
		l.Error("add_to_cart_error", "reason", "product lookup failed", "error", err)
		return nil, fmt.Errorf("lookup product: %w", ErrInternal)
	}

	_, err = s.Cart.FindCartItem(ctx, user.ID, product.ID)
	if err == nil {
		return nil, fmt.Errorf("product %d already in cart: %w", productID, ErrConflict)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		l.Error("add_to_cart_error", "reason", "cart lookup failed", "error", err)
		return nil, fmt.Errorf("lookup cart: %w", ErrInternal)
	}

	item := &models.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: qty}
	err = s.Cart.AddCartItem(ctx, item)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, fmt.Errorf("product %d already in cart: %w", productID, ErrConflict)
	}
	if err != nil {
		l.Error("add_to_cart_error", "reason", "insert failed", "error", err)
		return nil, fmt.Errorf("add cart item: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicCart, user.ID, map[string]any{
		"type":      "add_cart_item",
		"userID":    user.ID,
		"productID": product.ID,
		"quantity":  qty,
	})

	return &repo.CartLine{
		ProductID:   product.ID,
		Username:    user.Username,
		ProductName: product.Name,
		Price:       product.Price,
		Quantity:    qty,
	}, nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, id session.Identity, productID uint) error {
	err := s.Cart.DeleteCartItem(ctx, id.UserID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("product %d is not in cart: %w", productID, ErrInvalidInput)
	}
	if err != nil {
		logging.FromContext(ctx).Error("remove_from_cart_error", "svc", "cart.remove", "error", err)
		return fmt.Errorf("remove cart item: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicCart, id.UserID, map[string]any{
		"type":      "remove_cart_item",
		"userID":    id.UserID,
		"productID": productID,
	})
	return nil
}

func (s *CartService) ViewCart(ctx context.Context, id session.Identity) ([]repo.CartLine, error) {
	l := logging.FromContext(ctx).With("svc", "cart.view", "user_id", id.UserID)

	if _, err := s.Users.GetUserByID(ctx, id.UserID); err != nil {
		l.Error("view_cart_error", "reason", "cannot resolve user", "error", err)
		return nil, fmt.Errorf("resolve user %d: %w", id.UserID, ErrInternal)
	}

	lines, err := s.Cart.ListCartLines(ctx, id.UserID)
	if err != nil {
		l.Error("view_cart_error", "reason", "list failed", "error", err)
		return nil, fmt.Errorf("list cart: %w", ErrInternal)
	}
	return lines, nil
}

// Checkout empties the cart and reports how many lines were removed.
func (s *CartService) Checkout(ctx context.Context, id session.Identity) (int64, error) {
	l := logging.FromContext(ctx).With("svc", "cart.checkout", "user_id", id.UserID)

	_, err := s.Users.GetUserByID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("user %d: %w", id.UserID, ErrNotFound)
	}
	if err != nil {
		l.Error("checkout_error", "reason", "user lookup failed", "error", err)
		return 0, fmt.Errorf("lookup user: %w", ErrInternal)
	}

	removed, err := s.Cart.ClearCart(ctx, id.UserID)
	if err != nil {
		l.Error("checkout_error", "reason", "clear failed", "error", err)
		return 0, fmt.Errorf("clear cart: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicCart, id.UserID, map[string]any{
		"type":         "checkout",
		"userID":       id.UserID,
		"removedItems": removed,
	})
	return removed, nil
}
