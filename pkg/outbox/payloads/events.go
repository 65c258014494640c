package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when a cart is converted into an order.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID               `json:"order_id"`
	UserID            uuid.UUID               `json:"user_id"`
	SourceCartID      uuid.UUID               `json:"source_cart_id"`
	PaymentMethodType enums.PaymentMethodType `json:"payment_method_type"`
	TotalOrderPrice   decimal.Decimal         `json:"total_order_price"`
	ItemCount         int                     `json:"item_count"`
	IsPaid            bool                    `json:"is_paid"`
	CheckoutSessionID *string                 `json:"checkout_session_id,omitempty"`
}

// OrderPaidEvent is emitted when an order flips to paid.
type OrderPaidEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	PaidAt  time.Time `json:"paid_at"`
}

// OrderDeliveredEvent is emitted when an order flips to delivered.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}
