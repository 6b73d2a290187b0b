package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

type emailMessageRepository struct {
	db *gorm.DB
}

func NewEmailMessageRepository(db *gorm.DB) interfaces.EmailMessageRepository {
	return &emailMessageRepository{db: db}
}

func (r *emailMessageRepository) Create(ctx context.Context, message *models.EmailMessage) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if message == nil {
		err := errors.New("message cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	tracing.TagOrganization(span, message.OrganizationID)

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return message.ID, nil
}

func (r *emailMessageRepository) GetByID(ctx context.Context, id string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		err := errors.New("message ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var message models.EmailMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &message, nil
}

func (r *emailMessageRepository) SetRelatedTask(ctx context.Context, id string, taskID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.SetRelatedTask")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.SetTag("task_id", taskID)

	if id == "" || taskID == "" {
		err := errors.New("message ID and task ID cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"related_task_id": taskID,
			"updated_at":      utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Errorf("email message %s not found", id)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}
