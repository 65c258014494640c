package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Actor is the authenticated caller an operation runs on behalf of.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
}

// IsAdmin reports whether the actor may see and mutate every order.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// ListFilter narrows order listings. A nil UserID lists every user's orders.
type ListFilter struct {
	UserID      *uuid.UUID
	IsPaid      *bool
	IsDelivered *bool
}

// OrderPage is one cursor page of orders, newest first.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

// CashOrderInput carries a cash checkout request.
type CashOrderInput struct {
	CartID          uuid.UUID
	Actor           Actor
	ShippingAddress types.ShippingAddress
}

// CartItemDTO is one order line as returned by the API.
type CartItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// OrderDTO is the API representation of an order.
type OrderDTO struct {
	ID                uuid.UUID               `json:"id"`
	UserID            uuid.UUID               `json:"user_id"`
	CartItems         []CartItemDTO           `json:"cart_items"`
	ShippingAddress   types.ShippingAddress   `json:"shipping_address"`
	TaxPrice          decimal.Decimal         `json:"tax_price"`
	ShippingPrice     decimal.Decimal         `json:"shipping_price"`
	TotalOrderPrice   decimal.Decimal         `json:"total_order_price"`
	PaymentMethodType enums.PaymentMethodType `json:"payment_method_type"`
	IsPaid            bool                    `json:"is_paid"`
	PaidAt            *time.Time              `json:"paid_at,omitempty"`
	IsDelivered       bool                    `json:"is_delivered"`
	DeliveredAt       *time.Time              `json:"delivered_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// OrderList is the API representation of an order page.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps a stored order onto its API shape.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]CartItemDTO, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		items = append(items, CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Price:     item.Price,
		})
	}
	return &OrderDTO{
		ID:                order.ID,
		UserID:            order.UserID,
		CartItems:         items,
		ShippingAddress:   order.ShippingAddress,
		TaxPrice:          order.TaxPrice,
		ShippingPrice:     order.ShippingPrice,
		TotalOrderPrice:   order.TotalOrderPrice,
		PaymentMethodType: order.PaymentMethodType,
		IsPaid:            order.IsPaid,
		PaidAt:            order.PaidAt,
		IsDelivered:       order.IsDelivered,
		DeliveredAt:       order.DeliveredAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}

func newOrderList(page *OrderPage) *OrderList {
	list := &OrderList{Orders: make([]OrderDTO, 0)}
	if page == nil {
		return list
	}
	for i := range page.Orders {
		list.Orders = append(list.Orders, *NewOrderDTO(&page.Orders[i]))
	}
	list.NextCursor = page.NextCursor
	return list
}
