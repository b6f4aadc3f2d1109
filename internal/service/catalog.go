package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
)

type CatalogService struct {
	Repo   repo.ProductRepository
	Events events.Publisher
}

// ProductInput carries the supplied subset of product fields; nil means absent.
type ProductInput struct {
	Name        *string
	Price       *models.Money
	Description *string
}

func (in ProductInput) validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("name must not be blank: %w", ErrInvalidInput)
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return fmt.Errorf("price must not be negative: %w", ErrInvalidInput)
		}
		if !in.Price.FitsPrice() {
			return fmt.Errorf("price must be below %s with at most %d decimal places: %w",
				models.MaxPrice, models.PriceScale, ErrInvalidInput)
		}
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Name == nil || in.Price == nil {
		return nil, fmt.Errorf("name and price are required: %w", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:  strings.TrimSpace(*in.Name),
		Price: *in.Price,
	}
	if in.Description != nil {
		p.Description = *in.Description
	}

	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Error("create_product_error", "svc", "catalog.create", "error", err)
		return nil, fmt.Errorf("create product: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicProducts, p.ID, map[string]any{
		"type":      "create_product",
		"productID": p.ID,
		"name":      p.Name,
		"price":     p.Price.String(),
	})
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w: %v", ErrInternal, err)
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = *in.Description
	}

	err = s.Repo.UpdateProduct(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		logging.FromContext(ctx).Error("update_product_error", "svc", "catalog.update", "error", err)
		return nil, fmt.Errorf("update product: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicProducts, p.ID, map[string]any{
		"type":      "update_product",
		"productID": p.ID,
	})
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.Repo.DeleteProduct(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		logging.FromContext(ctx).Error("delete_product_error", "svc", "catalog.delete", "error", err)
		return fmt.Errorf("delete product: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicProducts, id, map[string]any{
		"type":      "delete_product",
		"productID": id,
	})
	return nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	items, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w: %v", ErrInternal, err)
	}
	return items, nil
}
