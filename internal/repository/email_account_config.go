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

type emailAccountConfigRepository struct {
	db *gorm.DB
}

func NewEmailAccountConfigRepository(db *gorm.DB) interfaces.EmailAccountConfigRepository {
	return &emailAccountConfigRepository{db: db}
}

func (r *emailAccountConfigRepository) GetByID(ctx context.Context, id string) (*models.EmailAccountConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountConfigRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		err := errors.New("account config ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var config models.EmailAccountConfig
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &config, nil
}

func (r *emailAccountConfigRepository) GetActive(ctx context.Context, organizationID, accountConfigID string) ([]*models.EmailAccountConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountConfigRepository.GetActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOrganization(span, organizationID)

	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}
	if accountConfigID != "" {
		query = query.Where("id = ?", accountConfigID)
	}

	var configs []*models.EmailAccountConfig
	if err := query.Order("created_at ASC").Find(&configs).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return configs, nil
}

func (r *emailAccountConfigRepository) UpdateLastSuccessfulPoll(ctx context.Context, id string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountConfigRepository.UpdateLastSuccessfulPoll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		err := errors.New("account config ID cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.EmailAccountConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_successful_poll_at": at,
			"updated_at":              utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Errorf("account config %s not found", id)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}
