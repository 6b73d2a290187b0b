package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

type ingestionBatchRepository struct {
	db *gorm.DB
}

func NewIngestionBatchRepository(db *gorm.DB) interfaces.IngestionBatchRepository {
	return &ingestionBatchRepository{db: db}
}

func (r *ingestionBatchRepository) Create(ctx context.Context, batch *models.IngestionBatch) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionBatchRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if batch == nil {
		err := errors.New("batch cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	tracing.TagOrganization(span, batch.OrganizationID)

	if batch.Status == "" {
		batch.Status = enum.BatchRunning
	}
	if batch.StartedAt.IsZero() {
		batch.StartedAt = utils.Now()
	}

	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return batch.ID, nil
}

// Finalize transitions a running batch to its terminal status. The guard on
// status=running makes the transition single-shot.
func (r *ingestionBatchRepository) Finalize(ctx context.Context, id string, status enum.BatchStatus, totalFetched, totalPersisted, totalFailed int, errorSummary string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionBatchRepository.Finalize")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.SetTag("status", status.String())

	if id == "" {
		err := errors.New("batch ID cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}
	if status != enum.BatchCompleted && status != enum.BatchFailed {
		err := errors.Errorf("invalid terminal batch status %s", status)
		tracing.TraceErr(span, err)
		return err
	}

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.IngestionBatch{}).
		Where("id = ? AND status = ?", id, enum.BatchRunning).
		Updates(map[string]interface{}{
			"status":          status,
			"finished_at":     now,
			"total_fetched":   totalFetched,
			"total_persisted": totalPersisted,
			"total_failed":    totalFailed,
			"error_summary":   utils.Truncate(errorSummary, 1024),
			"updated_at":      now,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Errorf("batch %s not found or already finalized", id)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func (r *ingestionBatchRepository) GetByID(ctx context.Context, id string) (*models.IngestionBatch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionBatchRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		err := errors.New("batch ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var batch models.IngestionBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &batch, nil
}
