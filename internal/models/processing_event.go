package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/utils"
)

// ProcessingEvent is one append-only audit row per envelope per pipeline
// milestone. Rows are written once and never updated or deleted here.
type ProcessingEvent struct {
	ID               string                   `gorm:"column:id;type:varchar(50);primaryKey"`
	OrganizationID   string                   `gorm:"column:organization_id;type:varchar(50);index;not null"`
	EmailMessageID   string                   `gorm:"column:email_message_id;type:varchar(50);index;not null"`
	IngestionBatchID *string                  `gorm:"column:ingestion_batch_id;type:varchar(50);index"`
	EventType        enum.ProcessingEventType `gorm:"column:event_type;type:varchar(50);index;not null"`
	Details          JSONMap                  `gorm:"column:details;type:jsonb"`
	OccurredAt       time.Time                `gorm:"column:occurred_at;type:timestamp;index;not null"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (ProcessingEvent) TableName() string {
	return "email_processing_events"
}

func (e *ProcessingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("evt", 16)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = utils.Now()
	}
	e.CreatedAt = utils.Now()
	return nil
}
