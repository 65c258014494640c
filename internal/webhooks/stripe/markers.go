package stripewebhook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// MarkerRepository stores processed webhook deliveries.
type MarkerRepository struct {
	db *gorm.DB
}

func NewMarkerRepository(db *gorm.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

func (r *MarkerRepository) WithTx(tx *gorm.DB) *MarkerRepository {
	if tx == nil {
		return r
	}
	return &MarkerRepository{db: tx}
}

// Insert fails with a unique violation when the event id or the session id
// was recorded before.
func (r *MarkerRepository) Insert(ctx context.Context, marker *models.ProcessedWebhookEvent) error {
	return r.db.WithContext(ctx).Create(marker).Error
}

// AttachOrder links the marker to the order it produced.
func (r *MarkerRepository) AttachOrder(ctx context.Context, eventID string, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcessedWebhookEvent{}).
		Where("event_id = ?", eventID).
		Update("order_id", orderID).Error
}

func (r *MarkerRepository) FindByEventID(ctx context.Context, eventID string) (*models.ProcessedWebhookEvent, error) {
	var marker models.ProcessedWebhookEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&marker).Error; err != nil {
		return nil, err
	}
	return &marker, nil
}
