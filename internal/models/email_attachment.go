package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/utils"
)

// EmailAttachment is attachment metadata owned by one email message. Binary
// content lives in the external attachment store, referenced by StorageKey.
type EmailAttachment struct {
	ID             string `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailMessageID string `gorm:"column:email_message_id;type:varchar(50);index;not null"`
	Filename       string `gorm:"column:filename;type:varchar(500)"`
	ContentType    string `gorm:"column:content_type;type:varchar(255)"`
	ContentID      string `gorm:"column:content_id;type:varchar(255)"`
	SizeBytes      int64  `gorm:"column:size_bytes;default:0"`
	IsInline       bool   `gorm:"column:is_inline;default:false"`

	// Allowed is computed against the tenant MIME allow-list at parse time.
	Allowed bool `gorm:"column:allowed;default:true"`

	StorageKey string `gorm:"column:storage_key;type:varchar(1000)"`
	Checksum   string `gorm:"column:checksum;type:varchar(64);index"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	e.CreatedAt = utils.Now()
	return nil
}
