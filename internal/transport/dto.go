package transport

import (
	"time"

	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type CreateProductRequest struct {
	Name        *string       `json:"name"        validate:"required"`
	Price       *models.Money `json:"price"       validate:"required"`
	Description *string       `json:"description"`
}

// PatchProductRequest holds only the fields the client sent.
type PatchProductRequest struct {
	Name        *string       `json:"name"`
	Price       *models.Money `json:"price"`
	Description *string       `json:"description"`
}

type ProductSummary struct {
	ID    uint         `json:"id"`
	Name  string       `json:"name"`
	Price models.Money `json:"price"`
}

type AddToCartRequest struct {
	Quantity *int `json:"quantity"`
}

type CartLine struct {
	ProductID   uint         `json:"product_id"`
	Username    string       `json:"username"`
	ProductName string       `json:"product_name"`
	Price       models.Money `json:"price"`
	Quantity    int          `json:"quantity"`
}

type CheckoutResponse struct {
	Message      string `json:"message"`
	RemovedItems int64  `json:"removed_items"`
}

func ToProductSummaries(items []models.Product) []ProductSummary {
	out := make([]ProductSummary, 0, len(items))
	for _, p := range items {
		out = append(out, ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price})
	}
	return out
}

func ToCartLine(l repo.CartLine) CartLine {
	return CartLine{
		ProductID:   l.ProductID,
		Username:    l.Username,
		ProductName: l.ProductName,
		Price:       l.Price,
		Quantity:    l.Quantity,
	}
}

func ToCartLines(lines []repo.CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, ToCartLine(l))
	}
	return out
}
