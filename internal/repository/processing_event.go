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

type processingEventRepository struct {
	db *gorm.DB
}

func NewProcessingEventRepository(db *gorm.DB) interfaces.ProcessingEventRepository {
	return &processingEventRepository{db: db}
}

// Record appends one audit row. Events are insert-only; there is no update
// or delete path in this repository.
func (r *processingEventRepository) Record(ctx context.Context, event *models.ProcessingEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingEventRepository.Record")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if event == nil {
		err := errors.New("event cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	if event.EmailMessageID == "" {
		err := errors.New("event requires an email message ID")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("event_type", event.EventType.String())

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func (r *processingEventRepository) GetByEmailMessageID(ctx context.Context, emailMessageID string) ([]*models.ProcessingEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingEventRepository.GetByEmailMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, emailMessageID)

	if emailMessageID == "" {
		err := errors.New("email message ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var events []*models.ProcessingEvent
	err := r.db.WithContext(ctx).
		Where("email_message_id = ?", emailMessageID).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return events, nil
}

func (r *processingEventRepository) GetByBatchID(ctx context.Context, batchID string) ([]*models.ProcessingEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingEventRepository.GetByBatchID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, batchID)

	if batchID == "" {
		err := errors.New("batch ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var events []*models.ProcessingEvent
	err := r.db.WithContext(ctx).
		Where("ingestion_batch_id = ?", batchID).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return events, nil
}
