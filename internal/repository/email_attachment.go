package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
)

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{db: db}
}

func (r *emailAttachmentRepository) Create(ctx context.Context, attachment *models.EmailAttachment) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if attachment == nil {
		err := errors.New("attachment cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	if attachment.EmailMessageID == "" {
		err := errors.New("attachment requires an email message ID")
		tracing.TraceErr(span, err)
		return "", err
	}

	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return attachment.ID, nil
}

func (r *emailAttachmentRepository) GetByEmailMessageID(ctx context.Context, emailMessageID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetByEmailMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, emailMessageID)

	if emailMessageID == "" {
		err := errors.New("email message ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var attachments []*models.EmailAttachment
	err := r.db.WithContext(ctx).
		Where("email_message_id = ?", emailMessageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return attachments, nil
}
