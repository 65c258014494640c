package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// FulfillInput describes one cart-to-order conversion.
type FulfillInput struct {
	CartID uuid.UUID
	// UserID owns the new order.
	UserID uuid.UUID
	// CartOwnerID, when set, must match the cart's owner or the cart is
	// treated as missing.
	CartOwnerID       *uuid.UUID
	ShippingAddress   types.ShippingAddress
	PaymentMethod     enums.PaymentMethodType
	CheckoutSessionID string
	// PaidAmount overrides the computed total with what the provider charged.
	PaidAmount *decimal.Decimal
	Actor      *outbox.ActorRef
}

// Fulfiller converts a locked cart into an order. Order creation, the
// inventory adjustment, cart deletion and the outbox rows all run on the
// caller's transaction, so they commit together or not at all.
type Fulfiller struct {
	orders    Repository
	carts     *cart.Repository
	inventory InventoryAdjuster
	outbox    outbox.Emitter
	pricing   pricing.Policy
	logg      *logger.Logger
	now       func() time.Time
}

// FulfillerParams wires a Fulfiller.
type FulfillerParams struct {
	Orders    Repository
	Carts     *cart.Repository
	Inventory InventoryAdjuster
	Outbox    outbox.Emitter
	Pricing   pricing.Policy
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewFulfiller validates and assembles a Fulfiller.
func NewFulfiller(params FulfillerParams) (*Fulfiller, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Carts == nil {
		return nil, errors.New("cart repository required")
	}
	if params.Inventory == nil {
		return nil, errors.New("inventory adjuster required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Fulfiller{
		orders:    params.Orders,
		carts:     params.Carts,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		pricing:   params.Pricing,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Fulfill runs the conversion on tx. A missing cart yields a NotFound error.
func (f *Fulfiller) Fulfill(ctx context.Context, tx *gorm.DB, input FulfillInput) (*models.Order, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order owner required")
	}

	source, err := f.carts.WithTx(tx).FindByIDForUpdate(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if input.CartOwnerID != nil && source.UserID != *input.CartOwnerID {
		return nil, pkgerrors.NotFound("cart")
	}

	quote := f.pricing.QuoteCart(source)
	total := quote.Total
	if input.PaidAmount != nil {
		total = *input.PaidAmount
	}

	now := f.now().UTC()
	order := &models.Order{
		ID:                uuid.New(),
		UserID:            input.UserID,
		SourceCartID:      source.ID,
		CartItems:         append([]models.CartItem{}, source.CartItems...),
		ShippingAddress:   input.ShippingAddress.Normalize(),
		TaxPrice:          quote.Tax,
		ShippingPrice:     quote.Shipping,
		TotalOrderPrice:   total,
		PaymentMethodType: input.PaymentMethod,
	}
	if input.PaymentMethod.PaidAtCreation() {
		order.IsPaid = true
		order.PaidAt = &now
	}
	if input.CheckoutSessionID != "" {
		sessionID := input.CheckoutSessionID
		order.CheckoutSessionID = &sessionID
	}

	created, err := f.orders.WithTx(tx).Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	logCtx := ctx
	if f.logg != nil {
		logCtx = f.logg.WithOrderID(f.logg.WithCartID(ctx, source.ID.String()), created.ID.String())
	}

	result, err := f.inventory.Apply(ctx, tx, inventory.AdjustmentsFromCart(source.CartItems))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust inventory")
	}
	if f.logg != nil {
		if len(result.Missing) > 0 {
			f.logg.Warn(f.logg.WithField(logCtx, "product_ids", uuidStrings(result.Missing)), "inventory.missing_product")
		}
		if len(result.Oversold) > 0 {
			f.logg.Warn(f.logg.WithField(logCtx, "product_ids", uuidStrings(result.Oversold)), "inventory.negative_stock")
		}
	}

	if _, err := f.carts.WithTx(tx).Delete(ctx, source.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
	}

	if err := f.emitCreated(ctx, tx, created, input.Actor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	if created.IsPaid {
		if err := f.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         input.Actor,
			Data: payloads.OrderPaidEvent{
				OrderID: created.ID,
				UserID:  created.UserID,
				PaidAt:  now,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order paid")
		}
	}

	if f.logg != nil {
		f.logg.Info(f.logg.WithFields(logCtx, map[string]any{
			"payment_method": created.PaymentMethodType,
			"total":          created.TotalOrderPrice.String(),
			"items_applied":  result.Applied,
		}), "order.fulfilled")
	}
	return created, nil
}

func (f *Fulfiller) emitCreated(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) error {
	return f.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:           order.ID,
			UserID:            order.UserID,
			SourceCartID:      order.SourceCartID,
			PaymentMethodType: order.PaymentMethodType,
			TotalOrderPrice:   order.TotalOrderPrice,
			ItemCount:         itemCount(order.CartItems),
			IsPaid:            order.IsPaid,
			CheckoutSessionID: order.CheckoutSessionID,
		},
	})
}

func itemCount(items []models.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
