package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/utils"
)

// IngestionBatch records one mailbox-poll execution for one account. It is
// created at poll start, finalized exactly once at poll end, and immutable
// afterwards. Operational visibility only; correctness never depends on it.
type IngestionBatch struct {
	ID                   string           `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailAccountConfigID string           `gorm:"column:email_account_config_id;type:varchar(50);index;not null"`
	OrganizationID       string           `gorm:"column:organization_id;type:varchar(50);index;not null"`
	StartedAt            time.Time        `gorm:"column:started_at;type:timestamp;not null"`
	FinishedAt           *time.Time       `gorm:"column:finished_at;type:timestamp"`
	Status               enum.BatchStatus `gorm:"column:status;type:varchar(20);index;not null"`
	TotalFetched         int              `gorm:"column:total_fetched;default:0"`
	TotalPersisted       int              `gorm:"column:total_persisted;default:0"`
	TotalFailed          int              `gorm:"column:total_failed;default:0"`
	ErrorSummary         string           `gorm:"column:error_summary;type:varchar(1024)"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (IngestionBatch) TableName() string {
	return "email_ingestion_batches"
}

func (e *IngestionBatch) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("batch", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}
