package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the durable record of a fulfilled cart. CartItems is a snapshot
// taken at creation; only the paid and delivered flags change afterwards.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	SourceCartID      uuid.UUID               `gorm:"column:source_cart_id;type:uuid;not null;index"`
	CartItems         []CartItem              `gorm:"column:cart_items;type:jsonb;not null;serializer:json"`
	ShippingAddress   types.ShippingAddress   `gorm:"column:shipping_address;type:jsonb;not null;serializer:json"`
	TaxPrice          decimal.Decimal         `gorm:"column:tax_price;type:numeric(12,2);not null"`
	ShippingPrice     decimal.Decimal         `gorm:"column:shipping_price;type:numeric(12,2);not null"`
	TotalOrderPrice   decimal.Decimal         `gorm:"column:total_order_price;type:numeric(12,2);not null"`
	PaymentMethodType enums.PaymentMethodType `gorm:"column:payment_method_type;type:text;not null"`
	IsPaid            bool                    `gorm:"column:is_paid;not null;default:false"`
	PaidAt            *time.Time              `gorm:"column:paid_at"`
	IsDelivered       bool                    `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt       *time.Time              `gorm:"column:delivered_at"`
	CheckoutSessionID *string                 `gorm:"column:checkout_session_id;uniqueIndex"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
