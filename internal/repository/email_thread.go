package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

type emailThreadRepository struct {
	db *gorm.DB
}

func NewEmailThreadRepository(db *gorm.DB) interfaces.EmailThreadRepository {
	return &emailThreadRepository{db: db}
}

func (r *emailThreadRepository) Create(ctx context.Context, thread *models.EmailThread) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if thread == nil {
		err := errors.New("thread cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	if thread.ThreadKey == "" {
		err := errors.New("thread key cannot be empty")
		tracing.TraceErr(span, err)
		return "", err
	}
	tracing.TagOrganization(span, thread.OrganizationID)

	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return thread.ID, nil
}

func (r *emailThreadRepository) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		err := errors.New("thread ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var thread models.EmailThread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

func (r *emailThreadRepository) GetByKey(ctx context.Context, organizationID, threadKey string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOrganization(span, organizationID)

	if organizationID == "" || threadKey == "" {
		err := errors.New("organization ID and thread key cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND thread_key = ?", organizationID, threadKey).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

func (r *emailThreadRepository) TouchLastMessage(ctx context.Context, threadID string, subjectSnapshot string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.TouchLastMessage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, threadID)

	if threadID == "" {
		err := errors.New("thread ID cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}

	updates := map[string]interface{}{
		"last_message_at": at,
		"updated_at":      utils.Now(),
	}
	if subjectSnapshot != "" {
		updates["subject_snapshot"] = subjectSnapshot
	}

	result := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("id = ?", threadID).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Errorf("thread %s not found", threadID)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// SetPrimaryTaskIfUnset claims the thread's primary task slot with a single
// conditional UPDATE. First task wins; a set value is never overwritten.
func (r *emailThreadRepository) SetPrimaryTaskIfUnset(ctx context.Context, threadID string, taskID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.SetPrimaryTaskIfUnset")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, threadID)
	span.SetTag("task_id", taskID)

	if threadID == "" || taskID == "" {
		err := errors.New("thread ID and task ID cannot be empty")
		tracing.TraceErr(span, err)
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("id = ? AND primary_task_id IS NULL", threadID).
		Updates(map[string]interface{}{
			"primary_task_id": taskID,
			"updated_at":      utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
