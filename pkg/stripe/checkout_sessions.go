package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	breakerName               = "stripe-checkout-sessions"
	defaultBreakerMaxFailures = 5
)

// SessionClient creates hosted checkout sessions.
type SessionClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type createSessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// BreakerSessionClient calls the Checkout Sessions API through a circuit
// breaker. Provider rejections do not count as failures; transport errors do.
type BreakerSessionClient struct {
	create  createSessionFunc
	breaker *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

// NewSessionClient builds a session client for an initialized Stripe client.
func NewSessionClient(client *Client, cfg config.StripeConfig, logg *logger.Logger) (*BreakerSessionClient, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return newBreakerSessionClient(session.New, cfg, logg), nil
}

func newBreakerSessionClient(create createSessionFunc, cfg config.StripeConfig, logg *logger.Logger) *BreakerSessionClient {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isProviderRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "stripe.breaker_state_changed")
		},
	}
	return &BreakerSessionClient{
		create:  create,
		breaker: gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](settings),
	}
}

// CreateCheckoutSession creates a session and maps failures onto typed errors.
func (c *BreakerSessionClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session params required")
	}
	params.Context = ctx
	sess, err := c.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return c.create(params)
	})
	if err != nil {
		return nil, MapError(err)
	}
	return sess, nil
}

// State reports the breaker state.
func (c *BreakerSessionClient) State() gobreaker.State {
	return c.breaker.State()
}

// MapError converts Stripe and breaker failures into typed errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider temporarily unavailable")
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details := map[string]any{"type": string(stripeErr.Type)}
		if stripeErr.Code != "" {
			details["code"] = string(stripeErr.Code)
		}
		if stripeErr.RequestID != "" {
			details["request_id"] = stripeErr.RequestID
		}
		msg := stripeErr.Msg
		if msg == "" {
			msg = fmt.Sprintf("payment provider returned status %d", stripeErr.HTTPStatusCode)
		}
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, msg).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "payment provider request failed")
}

// isProviderRejection reports a 4xx answer from Stripe: the provider is
// reachable, the request was refused.
func isProviderRejection(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500
}
