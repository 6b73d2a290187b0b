package services

import (
	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/crypto"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/repository"
	"github.com/orgohq/mailgate/services/imapclient"
	"github.com/orgohq/mailgate/services/ingestion"
	"github.com/orgohq/mailgate/services/notifications"
	"github.com/orgohq/mailgate/services/parser"
	"github.com/orgohq/mailgate/services/policy"
	"github.com/orgohq/mailgate/services/router"
	"github.com/orgohq/mailgate/services/storage"
	"github.com/orgohq/mailgate/services/tasks"
	"github.com/orgohq/mailgate/services/workflow"
)

type Services struct {
	NotificationService interfaces.NotificationService
	WorkflowEngine      interfaces.WorkflowEngine
	TaskService         interfaces.TaskService
	EmailParser         interfaces.EmailParser
	EmailRouter         interfaces.EmailRouter
	EmailIngestor       interfaces.EmailIngestor

	// notifierCloser holds the RabbitMQ publisher when one is configured
	// so the server can close it on shutdown.
	notifierCloser *notifications.RabbitMQNotifier
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	services := &Services{}

	// notifications
	if cfg.AppConfig.RabbitMQURL != "" {
		notifier, err := notifications.NewRabbitMQNotifier(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
		services.NotificationService = notifier
		services.notifierCloser = notifier
	} else {
		services.NotificationService = notifications.NewNoopNotifier(log)
	}

	// downstream org-ops services
	services.WorkflowEngine = workflow.NewWorkflowEngine(cfg.WorkflowEngineConfig)
	services.TaskService = tasks.NewTaskService(cfg.TaskServiceConfig)

	// mailbox credentials at rest
	cipher, err := crypto.NewEncryptor(cfg.IngestionConfig.CredentialEncryptionKey)
	if err != nil {
		return nil, err
	}

	// attachment content store, optional
	var attachmentStore interfaces.StorageService
	if cfg.StorageConfig.AccessKeyID != "" && cfg.StorageConfig.AccessKeySecret != "" {
		attachmentStore = storage.NewS3AttachmentStore(
			cfg.StorageConfig.AWSRegion,
			cfg.StorageConfig.AccessKeyID,
			cfg.StorageConfig.AccessKeySecret,
			cfg.StorageConfig.EmailAttachmentBucket,
		)
	}

	services.EmailParser = parser.NewEmailParser(log)
	services.EmailRouter = router.NewEmailRouter(
		log,
		repos.EmailMessageRepository,
		repos.EmailThreadRepository,
		repos.ProcessingEventRepository,
		services.WorkflowEngine,
		services.TaskService,
		services.NotificationService,
	)
	services.EmailIngestor = ingestion.NewEmailIngestor(
		log,
		cfg.IngestionConfig,
		ingestion.Repositories{
			Accounts:    repos.EmailAccountConfigRepository,
			Batches:     repos.IngestionBatchRepository,
			Messages:    repos.EmailMessageRepository,
			Threads:     repos.EmailThreadRepository,
			Attachments: repos.EmailAttachmentRepository,
			Events:      repos.ProcessingEventRepository,
		},
		imapclient.NewIMAPMailboxClient(log),
		services.EmailParser,
		policy.NewEmailPolicy(),
		cipher,
		services.EmailRouter,
		attachmentStore,
	)

	return services, nil
}

// Close releases service-held connections.
func (s *Services) Close() error {
	if s.notifierCloser != nil {
		return s.notifierCloser.Close()
	}
	return nil
}
