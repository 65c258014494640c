package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a cart; orders copy these verbatim.
type CartItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// Cart is a user's pending selection awaiting checkout.
type Cart struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	CartItems          []CartItem       `gorm:"column:cart_items;type:jsonb;not null;serializer:json"`
	TotalCartPrice     decimal.Decimal  `gorm:"column:total_cart_price;type:numeric(12,2);not null"`
	TotalAfterDiscount *decimal.Decimal `gorm:"column:total_after_discount;type:numeric(12,2)"`
	CouponCode         *string          `gorm:"column:coupon_code"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// PayableBase returns the discounted total when a coupon was applied,
// otherwise the full cart price.
func (c *Cart) PayableBase() decimal.Decimal {
	if c.TotalAfterDiscount != nil {
		return *c.TotalAfterDiscount
	}
	return c.TotalCartPrice
}

// ItemCount sums the quantities of every line.
func (c *Cart) ItemCount() int {
	total := 0
	for _, item := range c.CartItems {
		total += item.Quantity
	}
	return total
}
