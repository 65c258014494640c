// Package stripewebhook finalizes orders from verified Stripe events.
package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Outcome classifies how a verified event was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = metrics.WebhookOutcomeProcessed
	OutcomeIgnored   Outcome = metrics.WebhookOutcomeIgnored
	OutcomeDuplicate Outcome = metrics.WebhookOutcomeDuplicate
	OutcomeFailed    Outcome = metrics.WebhookOutcomeFailed
)

var errAlreadyProcessed = errors.New("webhook event already processed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fulfiller interface {
	Fulfill(ctx context.Context, tx *gorm.DB, input orders.FulfillInput) (*models.Order, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Users             *users.Repository
	Markers           *MarkerRepository
	Fulfiller         fulfiller
	CartLock          orders.CartLock
	Guard             eventGuard
	TransactionRunner txRunner
	Metrics           *metrics.CheckoutMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type Service struct {
	users     *users.Repository
	markers   *MarkerRepository
	fulfiller fulfiller
	cartLock  orders.CartLock
	guard     eventGuard
	txRunner  txRunner
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Markers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "marker repo required")
	}
	if params.Fulfiller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order fulfiller required")
	}
	if params.CartLock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart lock required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:     params.Users,
		markers:   params.Markers,
		fulfiller: params.Fulfiller,
		cartLock:  params.CartLock,
		guard:     params.Guard,
		txRunner:  params.TransactionRunner,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// HandleEvent acts on checkout.session.completed and ignores every other
// type. The returned error explains a failed outcome; callers acknowledge the
// delivery either way.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": eventType})

	outcome, err := s.dispatch(ctx, event)
	s.metrics.WebhookEvent(eventType, string(outcome))
	switch outcome {
	case OutcomeFailed:
		s.logg.Error(ctx, "webhook.failed", err)
	case OutcomeDuplicate:
		s.logg.Info(ctx, "webhook.duplicate")
	case OutcomeIgnored:
		s.logg.Debug(ctx, "webhook.ignored")
	}
	return outcome, err
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return OutcomeIgnored, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	completion, err := completionFromSession(&sess)
	if err != nil {
		return OutcomeFailed, err
	}
	if !paymentCaptured(sess.PaymentStatus) {
		s.logg.Warn(s.logg.WithField(ctx, "payment_status", string(sess.PaymentStatus)), "webhook.payment_not_captured")
		return OutcomeIgnored, nil
	}

	if s.guard != nil && event.ID != "" {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook.guard_unavailable")
		} else if seen {
			return OutcomeDuplicate, nil
		}
	}

	order, err := s.completeCheckout(ctx, event, completion)
	switch {
	case errors.Is(err, errAlreadyProcessed):
		return OutcomeDuplicate, nil
	case err != nil:
		if relErr := s.releaseGuard(ctx, event.ID); relErr != nil {
			err = multierr.Append(err, relErr)
		}
		return OutcomeFailed, err
	}

	s.metrics.OrderCreated(string(enums.PaymentMethodTypeCard))
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "webhook.order_created")
	return OutcomeProcessed, nil
}

// paymentCaptured reports whether a completed session was actually paid.
// Sessions are card-only, so unpaid completions are not expected to resolve later.
func paymentCaptured(status stripe.CheckoutSessionPaymentStatus) bool {
	switch status {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	default:
		return false
	}
}

// checkoutCompletion is the part of a completed session an order needs.
type checkoutCompletion struct {
	SessionID       string
	CartID          uuid.UUID
	Email           string
	AmountTotal     int64
	ShippingAddress types.ShippingAddress
}

func completionFromSession(sess *stripe.CheckoutSession) (checkoutCompletion, error) {
	if strings.TrimSpace(sess.ID) == "" {
		return checkoutCompletion{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	cartID, err := uuid.Parse(strings.TrimSpace(sess.ClientReferenceID))
	if err != nil {
		return checkoutCompletion{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "client_reference_id is not a cart id")
	}
	email := strings.TrimSpace(sess.CustomerEmail)
	if email == "" && sess.CustomerDetails != nil {
		email = strings.TrimSpace(sess.CustomerDetails.Email)
	}
	if email == "" {
		return checkoutCompletion{}, pkgerrors.New(pkgerrors.CodeValidation, "customer email missing")
	}
	return checkoutCompletion{
		SessionID:       sess.ID,
		CartID:          cartID,
		Email:           email,
		AmountTotal:     sess.AmountTotal,
		ShippingAddress: types.ShippingAddressFromMetadata(sess.Metadata),
	}, nil
}

func (s *Service) completeCheckout(ctx context.Context, event *stripe.Event, c checkoutCompletion) (order *models.Order, err error) {
	ctx = s.logg.WithCartID(ctx, c.CartID.String())

	lease, err := s.cartLock.Lock(ctx, c.CartID)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart is being checked out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, relErr)
		}
	}()

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		markers := s.markers.WithTx(tx)
		marker := &models.ProcessedWebhookEvent{
			EventID:     eventIDOrSession(event, c),
			SessionID:   c.SessionID,
			EventType:   string(event.Type),
			ProcessedAt: s.now().UTC(),
		}
		if err := markers.Insert(ctx, marker); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyProcessed
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook event")
		}

		user, err := s.users.WithTx(tx).FindByEmail(ctx, c.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("user")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}

		input := orders.FulfillInput{
			CartID:            c.CartID,
			UserID:            user.ID,
			ShippingAddress:   c.ShippingAddress,
			PaymentMethod:     enums.PaymentMethodTypeCard,
			CheckoutSessionID: c.SessionID,
			Actor:             &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
		}
		if c.AmountTotal > 0 {
			paid := pricing.FromMinorUnits(c.AmountTotal)
			input.PaidAmount = &paid
		}
		created, err := s.fulfiller.Fulfill(ctx, tx, input)
		if err != nil {
			return err
		}
		if err := markers.AttachOrder(ctx, marker.EventID, created.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link webhook event to order")
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) releaseGuard(ctx context.Context, eventID string) error {
	if s.guard == nil || eventID == "" {
		return nil
	}
	if err := s.guard.Delete(context.WithoutCancel(ctx), eventID); err != nil {
		return fmt.Errorf("release webhook guard: %w", err)
	}
	return nil
}

func eventIDOrSession(event *stripe.Event, c checkoutCompletion) string {
	if event.ID != "" {
		return event.ID
	}
	return "session:" + c.SessionID
}
