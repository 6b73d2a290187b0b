package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/utils"
)

// EmailMessage is the canonical, tenant-scoped envelope of one email.
// It is created by the parser, persisted by the ingestor, and later
// annotated with RelatedTaskID by the router. Parser output is a
// point-in-time normalization and is never mutated afterwards.
type EmailMessage struct {
	ID                   string                `gorm:"column:id;type:varchar(50);primaryKey"`
	OrganizationID       string                `gorm:"column:organization_id;type:varchar(50);index;not null"`
	EmailAccountConfigID string                `gorm:"column:email_account_config_id;type:varchar(50);index"`
	ThreadID             string                `gorm:"column:thread_id;type:varchar(50);index"`
	MessageIDHeader      string                `gorm:"column:message_id_header;type:varchar(255);index"`
	Direction            enum.EmailDirection   `gorm:"column:direction;type:varchar(20);index;not null"`

	// Core email metadata
	Subject      string         `gorm:"column:subject;type:varchar(1000)"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]"`

	// Time information
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index"`
	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp"`

	// Content
	RawHeaders JSONMap `gorm:"column:raw_headers;type:jsonb"`
	TextBody   string  `gorm:"column:text_body;type:text"`
	HTMLBody   string  `gorm:"column:html_body;type:text"`
	SizeBytes  int64   `gorm:"column:size_bytes;default:0"`

	// Classification outcome
	RelatedTaskID  *string               `gorm:"column:related_task_id;type:varchar(50);index"`
	Sensitivity    enum.EmailSensitivity `gorm:"column:sensitivity;type:varchar(30);index"`
	ParsedMetadata JSONMap               `gorm:"column:parsed_metadata;type:jsonb"`
	SecurityFlags  JSONMap               `gorm:"column:security_flags;type:jsonb"`

	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailMessage) TableName() string {
	return "email_messages"
}

func (e *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}

// AllRecipients returns to, cc and bcc addresses in declaration order,
// duplicates preserved.
func (e *EmailMessage) AllRecipients() []string {
	recipients := make([]string, 0, len(e.ToAddresses)+len(e.CcAddresses)+len(e.BccAddresses))
	recipients = append(recipients, e.ToAddresses...)
	recipients = append(recipients, e.CcAddresses...)
	recipients = append(recipients, e.BccAddresses...)
	return recipients
}

// HasBody reports whether at least one of the text or HTML bodies is set.
func (e *EmailMessage) HasBody() bool {
	return e.TextBody != "" || e.HTMLBody != ""
}

// ThreadIDHeaderValue returns the provider-supplied conversation id from the
// normalized headers, if any.
func (e *EmailMessage) ThreadIDHeaderValue() string {
	if e.RawHeaders == nil {
		return ""
	}
	for _, key := range []string{"x-thread-id", "thread-index", "x-gm-thrid"} {
		if v, ok := e.RawHeaders[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
