package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/utils"
)

// EmailAccountConfig is one tenant mailbox account polled by the ingestor.
// The IMAP password is stored encrypted at rest and decrypted immediately
// before use; the plaintext never reaches logs or the database.
type EmailAccountConfig struct {
	ID                     string     `gorm:"column:id;type:varchar(50);primaryKey"`
	OrganizationID         string     `gorm:"column:organization_id;type:varchar(50);index;not null"`
	ImapHost               string     `gorm:"column:imap_host;type:varchar(255);not null"`
	ImapPort               int        `gorm:"column:imap_port;default:993"`
	ImapUseSSL             bool       `gorm:"column:imap_use_ssl;default:true"`
	Username               string     `gorm:"column:username;type:varchar(255);not null"`
	EncryptedPassword      []byte     `gorm:"column:encrypted_password;type:bytea"`
	PollingIntervalSeconds int        `gorm:"column:polling_interval_seconds;default:120"`
	LastSuccessfulPollAt   *time.Time `gorm:"column:last_successful_poll_at;type:timestamp"`
	IsActive               bool       `gorm:"column:is_active;default:true;index"`

	// MaxEmailSizeBytes overrides the deployment size ceiling for this
	// tenant's account; nil falls back to the configured default.
	MaxEmailSizeBytes *int64 `gorm:"column:max_email_size_bytes"`
	// AllowedMimeTypes overrides the deployment attachment allow-list;
	// empty falls back to the configured default.
	AllowedMimeTypes pq.StringArray `gorm:"column:allowed_mime_types;type:text[]"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailAccountConfig) TableName() string {
	return "email_account_configs"
}

func (e *EmailAccountConfig) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}

// ImapAddress returns host:port for dialing.
func (e *EmailAccountConfig) ImapAddress() string {
	return fmt.Sprintf("%s:%d", e.ImapHost, e.ImapPort)
}
