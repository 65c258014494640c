package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service defines order operations exposed over HTTP.
type Service interface {
	CreateCashOrder(ctx context.Context, input CashOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor Actor, params pagination.Params) (*OrderList, error)
	MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	MarkDelivered(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Fulfiller  *Fulfiller
	CartLock   CartLock
	Outbox     outbox.Emitter
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	fulfiller *Fulfiller
	cartLock  CartLock
	outbox    outbox.Emitter
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Fulfiller == nil {
		return nil, fmt.Errorf("fulfiller required")
	}
	if params.CartLock == nil {
		return nil, fmt.Errorf("cart lock required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repository,
		tx:        params.Tx,
		fulfiller: params.Fulfiller,
		cartLock:  params.CartLock,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// CreateCashOrder converts the caller's cart into an unpaid cash order.
func (s *service) CreateCashOrder(ctx context.Context, input CashOrderInput) (_ *OrderDTO, err error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	lease, err := s.cartLock.Lock(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is already being checked out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			if err != nil {
				err = multierr.Append(err, releaseErr)
				return
			}
			s.logg.Warn(s.logg.WithField(ctx, "error", releaseErr.Error()), "orders.cart_lock_release_failed")
		}
	}()

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		owner := input.Actor.UserID
		var fulfillErr error
		created, fulfillErr = s.fulfiller.Fulfill(ctx, tx, FulfillInput{
			CartID:          input.CartID,
			UserID:          input.Actor.UserID,
			CartOwnerID:     &owner,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   enums.PaymentMethodTypeCash,
			Actor:           actorRef(input.Actor),
		})
		return fulfillErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(string(enums.PaymentMethodTypeCash))
	return NewOrderDTO(created), nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadVisible(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, actor Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := params.After(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := ListFilter{}
	if !actor.IsAdmin() {
		owner := actor.UserID
		filter.UserID = &owner
	}
	page, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return newOrderList(page), nil
}

func (s *service) MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, actor, orderID, flagPaid)
}

func (s *service) MarkDelivered(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, actor, orderID, flagDelivered)
}

type orderFlag int

const (
	flagPaid orderFlag = iota
	flagDelivered
)

// transition sets a one-way flag with a conditional update. Zero affected rows
// means the order is missing or the flag was already set.
func (s *service) transition(ctx context.Context, actor Actor, orderID uuid.UUID, flag orderFlag) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		var changed bool
		var err error
		switch flag {
		case flagPaid:
			changed, err = repo.MarkPaid(ctx, orderID, now)
		default:
			changed, err = repo.MarkDelivered(ctx, orderID, now)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if !changed {
			if flag == flagPaid {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already delivered")
		}

		event := outbox.DomainEvent{
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
		}
		if flag == flagPaid {
			event.EventType = enums.EventOrderPaid
			event.Data = payloads.OrderPaidEvent{OrderID: order.ID, UserID: order.UserID, PaidAt: now}
		} else {
			event.EventType = enums.EventOrderDelivered
			event.Data = payloads.OrderDeliveredEvent{OrderID: order.ID, UserID: order.UserID, DeliveredAt: now}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(updated), nil
}

// loadVisible hides orders owned by someone else behind NotFound.
func (s *service) loadVisible(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.NotFound("order")
	}
	return order, nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
