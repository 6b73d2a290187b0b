package interfaces

import (
	"context"

	"github.com/orgohq/mailgate/dto"
)

// MailboxConnection holds everything needed to dial one mailbox account.
// Password is plaintext, decrypted immediately before use; callers must not
// log or persist it.
type MailboxConnection struct {
	Host     string
	Port     int
	UseSSL   bool
	Username string
	Password string
}

// MailboxClient is the remote-mailbox collaborator.
type MailboxClient interface {
	// FetchUnreadMessages returns up to max unread messages in mailbox
	// order.
	FetchUnreadMessages(ctx context.Context, conn MailboxConnection, max int) ([]dto.RawMessage, error)
	// MarkProcessed flags the given provider ids as processed on the
	// remote mailbox. Best-effort; failures are logged by callers and
	// never fail a batch.
	MarkProcessed(ctx context.Context, conn MailboxConnection, providerIDs []string) error
}
