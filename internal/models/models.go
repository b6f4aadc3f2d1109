package models

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username     string `gorm:"uniqueIndex;not null"      json:"username"`
	PasswordHash string `gorm:"not null"                  json:"-"`
}

type Product struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string `gorm:"not null"                  json:"name"`
	Price       Money  `gorm:"type:decimal(12,2);not null" json:"price"`
	Description string `gorm:"not null;default:''"       json:"description"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement"                json:"id"`
	UserID    uint `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"user_id"`
	ProductID uint `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"product_id"`
	Quantity  int  `gorm:"not null;default:1;check:quantity>0"     json:"quantity"`

	User    *User    `gorm:"foreignKey:UserID"    json:"-"`
	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// Session is a server-side login record; ID doubles as the token's jti.
type Session struct {
	ID        string `gorm:"primaryKey;size:36"  json:"id"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

// All lists every table the service migrates.
func All() []any {
	return []any{&User{}, &Product{}, &CartItem{}, &Session{}}
}
