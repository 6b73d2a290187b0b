package handlers

import (
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/repository"
	"github.com/orgohq/mailgate/services"
)

type APIHandlers struct {
	Ingestion *IngestionHandler
	Emails    *EmailsHandler
}

func InitHandlers(log logger.Logger, svcs *services.Services, repos *repository.Repositories) *APIHandlers {
	return &APIHandlers{
		Ingestion: NewIngestionHandler(log, svcs.EmailIngestor),
		Emails: NewEmailsHandler(
			log,
			repos.EmailMessageRepository,
			repos.ProcessingEventRepository,
			svcs.EmailRouter,
		),
	}
}
