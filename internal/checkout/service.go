// Package checkout prepares hosted payment sessions for carts.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type cartReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
}

// SessionInput identifies the cart being paid for and where it ships.
type SessionInput struct {
	UserID          uuid.UUID
	Email           string
	CartID          uuid.UUID
	ShippingAddress types.ShippingAddress
}

// Builder creates provider checkout sessions for a single cart.
type Builder interface {
	CreateSession(ctx context.Context, input SessionInput) (*stripe.CheckoutSession, error)
}

// BuilderParams wires the builder's collaborators.
type BuilderParams struct {
	Carts    cartReader
	Sessions stripeclient.SessionClient
	Pricing  pricing.Policy
	Config   config.CheckoutConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type builder struct {
	carts    cartReader
	sessions stripeclient.SessionClient
	pricing  pricing.Policy
	cfg      config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewBuilder validates params and returns a session builder.
func NewBuilder(params BuilderParams) (Builder, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session client required")
	}
	if strings.TrimSpace(params.Config.Currency) == "" {
		return nil, fmt.Errorf("checkout currency required")
	}
	return &builder{
		carts:    params.Carts,
		sessions: params.Sessions,
		pricing:  params.Pricing,
		cfg:      params.Config,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (b *builder) CreateSession(ctx context.Context, input SessionInput) (*stripe.CheckoutSession, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	cart, err := b.carts.FindByID(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.UserID != input.UserID {
		return nil, pkgerrors.NotFound("cart")
	}

	quote := b.pricing.QuoteCart(cart)
	params := b.buildParams(cart, quote, input)

	ctx = b.logg.WithFields(ctx, map[string]any{
		"cart_id":      cart.ID.String(),
		"amount_minor": pricing.ToMinorUnits(quote.Total),
	})
	sess, err := b.sessions.CreateCheckoutSession(ctx, params)
	if err != nil {
		b.metrics.SessionFailed()
		b.logg.Warn(ctx, "checkout.session_failed")
		return nil, err
	}
	b.metrics.SessionCreated()
	b.logg.Info(ctx, "checkout.session_created")
	return sess, nil
}

func (b *builder) buildParams(cart *models.Cart, quote pricing.Quote, input SessionInput) *stripe.CheckoutSessionParams {
	email := strings.TrimSpace(input.Email)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{string(enums.PaymentMethodTypeCard)}),
		SuccessURL:         stripe.String(b.cfg.SuccessURL),
		CancelURL:          stripe.String(b.cfg.CancelURL),
		ClientReferenceID:  stripe.String(cart.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(b.cfg.Currency)),
					UnitAmount: stripe.Int64(pricing.ToMinorUnits(quote.Total)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(b.productName()),
						Description: stripe.String(lineDescription(cart.ItemCount(), email)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	for key, value := range input.ShippingAddress.ToMetadata() {
		params.AddMetadata(key, value)
	}
	return params
}

func (b *builder) productName() string {
	if name := strings.TrimSpace(b.cfg.ProductName); name != "" {
		return name
	}
	return "Order"
}

func lineDescription(items int, email string) string {
	noun := "items"
	if items == 1 {
		noun = "item"
	}
	if email == "" {
		return fmt.Sprintf("%d %s", items, noun)
	}
	return fmt.Sprintf("%d %s for %s", items, noun, email)
}
