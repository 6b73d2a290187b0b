package interfaces

import (
	"context"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/models"
)

// EmailParser normalizes one raw mailbox message into a canonical envelope
// plus attachment metadata. No side effects.
type EmailParser interface {
	Parse(ctx context.Context, raw *dto.RawMessage, pctx dto.ParseContext) (*models.EmailMessage, []*models.EmailAttachment, error)
}

// EmailRouter classifies a persisted envelope and applies the resolved
// workflow actions.
type EmailRouter interface {
	RouteToWorkflow(ctx context.Context, envelope *models.EmailMessage, opts dto.RoutingOptions) (*dto.RoutingResult, error)
}

// EmailIngestor polls mailbox accounts and drives the parse, validate,
// persist and route pipeline.
type EmailIngestor interface {
	PollMailboxes(ctx context.Context, opts dto.PollOptions) ([]dto.BatchResult, error)
}

// CredentialCipher decrypts mailbox credentials stored encrypted at rest.
type CredentialCipher interface {
	Decrypt(ciphertext []byte) (string, error)
}
