package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// ReconcileJobName labels the partial fulfillment repair job.
const ReconcileJobName = "reconcile_partial_fulfillment"

const (
	defaultReconcileGrace = 10 * time.Minute
	defaultReconcileBatch = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type openCartLister interface {
	ListWithOpenCart(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

// ReconcileJobParams configure the repair job.
type ReconcileJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    openCartLister
	Carts     *cart.Repository
	Metrics   *metrics.CronJobMetrics
	Grace     time.Duration
	BatchSize int
	Now       func() time.Time
}

type reconcileJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  openCartLister
	carts   *cart.Repository
	metrics *metrics.CronJobMetrics
	grace   time.Duration
	batch   int
	now     func() time.Time
}

// NewReconcileJob builds the job that removes carts left behind by orders
// created from them.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders lister required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reconcileJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		carts:   params.Carts,
		metrics: params.Metrics,
		grace:   grace,
		batch:   batch,
		now:     now,
	}, nil
}

func (j *reconcileJob) Name() string { return ReconcileJobName }

func (j *reconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	stale, err := j.orders.ListWithOpenCart(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list orders with open carts: %w", err)
	}

	var (
		repaired int
		errs     error
	)
	for _, order := range stale {
		orderCtx := j.logg.WithCartID(j.logg.WithOrderID(ctx, order.ID.String()), order.SourceCartID.String())
		var deleted bool
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deleted, err = j.carts.WithTx(tx).Delete(ctx, order.SourceCartID)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if deleted {
			repaired++
			j.logg.Warn(orderCtx, "reconcile.partial_fulfillment")
		}
	}

	j.metrics.AddRepaired(ReconcileJobName, repaired)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":  len(stale),
		"repaired": repaired,
	}), "reconcile.completed")
	return errs
}
