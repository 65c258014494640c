package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedWebhookEvent marks a provider event as consumed. The primary key
// and the unique session id make a second insert for the same delivery fail.
type ProcessedWebhookEvent struct {
	EventID     string     `gorm:"column:event_id;primaryKey"`
	SessionID   string     `gorm:"column:session_id;not null;uniqueIndex"`
	EventType   string     `gorm:"column:event_type;not null"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	ProcessedAt time.Time  `gorm:"column:processed_at;not null"`
}
