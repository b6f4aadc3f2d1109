package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/shopcart/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uint) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type CartRepository interface {
	AddCartItem(ctx context.Context, item *models.CartItem) error
	FindCartItem(ctx context.Context, userID, productID uint) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, productID uint) error
	ListCartLines(ctx context.Context, userID uint) ([]CartLine, error)
	ClearCart(ctx context.Context, userID uint) (int64, error)
}

// CartLine is a cart item joined with its owner and product.
type CartLine struct {
	ProductID   uint
	Username    string
	ProductName string
	Price       models.Money
	Quantity    int
}

type GormRepo struct {
	DB *gorm.DB
}

var (
	_ UserRepository    = (*GormRepo)(nil)
	_ ProductRepository = (*GormRepo)(nil)
	_ CartRepository    = (*GormRepo)(nil)
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
