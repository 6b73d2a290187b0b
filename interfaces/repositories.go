package interfaces

import (
	"context"
	"time"

	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/models"
)

type EmailMessageRepository interface {
	Create(ctx context.Context, message *models.EmailMessage) (string, error)
	GetByID(ctx context.Context, id string) (*models.EmailMessage, error)
	// SetRelatedTask links the message to a task. The link is written at
	// most once per message; re-linking to a different task is an error
	// at the call site, not here.
	SetRelatedTask(ctx context.Context, id string, taskID string) error
}

type EmailThreadRepository interface {
	Create(ctx context.Context, thread *models.EmailThread) (string, error)
	GetByID(ctx context.Context, id string) (*models.EmailThread, error)
	GetByKey(ctx context.Context, organizationID, threadKey string) (*models.EmailThread, error)
	// TouchLastMessage refreshes the subject snapshot and last-message
	// timestamp on each subsequent message of a conversation.
	TouchLastMessage(ctx context.Context, threadID string, subjectSnapshot string, at time.Time) error
	// SetPrimaryTaskIfUnset sets primary_task_id only when it is currently
	// null (compare-and-set). Returns true when this call won the slot.
	SetPrimaryTaskIfUnset(ctx context.Context, threadID string, taskID string) (bool, error)
}

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) (string, error)
	GetByEmailMessageID(ctx context.Context, emailMessageID string) ([]*models.EmailAttachment, error)
}

type EmailAccountConfigRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailAccountConfig, error)
	// GetActive returns active account configs, optionally filtered by
	// organization and/or account id.
	GetActive(ctx context.Context, organizationID, accountConfigID string) ([]*models.EmailAccountConfig, error)
	UpdateLastSuccessfulPoll(ctx context.Context, id string, at time.Time) error
}

type IngestionBatchRepository interface {
	Create(ctx context.Context, batch *models.IngestionBatch) (string, error)
	// Finalize marks the batch finished exactly once with its final status
	// and counters. The row is immutable afterwards.
	Finalize(ctx context.Context, id string, status enum.BatchStatus, totalFetched, totalPersisted, totalFailed int, errorSummary string) error
	GetByID(ctx context.Context, id string) (*models.IngestionBatch, error)
}

type ProcessingEventRepository interface {
	Record(ctx context.Context, event *models.ProcessingEvent) error
	GetByEmailMessageID(ctx context.Context, emailMessageID string) ([]*models.ProcessingEvent, error)
	GetByBatchID(ctx context.Context, batchID string) ([]*models.ProcessingEvent, error)
}
