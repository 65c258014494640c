package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderPage, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListWithOpenCart(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryAdjuster moves purchased quantities from stock to sold.
type InventoryAdjuster interface {
	Apply(ctx context.Context, tx *gorm.DB, adjustments []inventory.Adjustment) (inventory.Result, error)
}

// CartLock serializes fulfillment per cart. A nil lease with a nil error is a
// valid no-op lease.
type CartLock interface {
	Lock(ctx context.Context, cartID uuid.UUID) (*locks.Lease, error)
}
