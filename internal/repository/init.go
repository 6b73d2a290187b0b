package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/database"
	"github.com/orgohq/mailgate/internal/models"
)

type Repositories struct {
	EmailMessageRepository       interfaces.EmailMessageRepository
	EmailThreadRepository        interfaces.EmailThreadRepository
	EmailAttachmentRepository    interfaces.EmailAttachmentRepository
	EmailAccountConfigRepository interfaces.EmailAccountConfigRepository
	IngestionBatchRepository     interfaces.IngestionBatchRepository
	ProcessingEventRepository    interfaces.ProcessingEventRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailMessageRepository:       NewEmailMessageRepository(db),
		EmailThreadRepository:        NewEmailThreadRepository(db),
		EmailAttachmentRepository:    NewEmailAttachmentRepository(db),
		EmailAccountConfigRepository: NewEmailAccountConfigRepository(db),
		IngestionBatchRepository:     NewIngestionBatchRepository(db),
		ProcessingEventRepository:    NewProcessingEventRepository(db),
	}
}

func MigrateDB(dbConfig *database.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.EmailAccountConfig{},
		&models.EmailThread{},
		&models.EmailMessage{},
		&models.EmailAttachment{},
		&models.IngestionBatch{},
		&models.ProcessingEvent{},
	)
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return nil
}
