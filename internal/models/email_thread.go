package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orgohq/mailgate/internal/utils"
)

// EmailThread groups messages sharing a conversation key. PrimaryTaskID is
// set at most once: the first task created for the conversation wins and is
// never overwritten.
type EmailThread struct {
	ID              string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OrganizationID  string     `gorm:"column:organization_id;type:varchar(50);index:idx_thread_org_key,unique;not null" json:"organizationId"`
	ThreadKey       string     `gorm:"column:thread_key;type:varchar(255);index:idx_thread_org_key,unique" json:"threadKey"`
	SubjectSnapshot string     `gorm:"column:subject_snapshot;type:varchar(1000)" json:"subjectSnapshot"`
	PrimaryTaskID   *string    `gorm:"column:primary_task_id;type:varchar(50);index" json:"primaryTaskId"`
	LastMessageAt   *time.Time `gorm:"column:last_message_at;type:timestamp" json:"lastMessageAt"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (EmailThread) TableName() string {
	return "email_threads"
}

func (e *EmailThread) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("thrd", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}
