package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/enum"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
	"github.com/orgohq/mailgate/services/policy"
)

const errorSummaryLimit = 1024

// Repositories bundles the persistence dependencies of the ingestor.
type Repositories struct {
	Accounts    interfaces.EmailAccountConfigRepository
	Batches     interfaces.IngestionBatchRepository
	Messages    interfaces.EmailMessageRepository
	Threads     interfaces.EmailThreadRepository
	Attachments interfaces.EmailAttachmentRepository
	Events      interfaces.ProcessingEventRepository
}

// policyChecker is what the ingestor needs from the policy package.
type policyChecker interface {
	Check(ctx context.Context, envelope *models.EmailMessage, attachments []*models.EmailAttachment, limits policy.Limits) (*policy.Summary, error)
}

// emailIngestor orchestrates mailbox polling: one goroutine per active
// account, sequential messages within an account, one ingestion batch row
// per account per run.
type emailIngestor struct {
	log     logger.Logger
	cfg     *config.IngestionConfig
	repos   Repositories
	mailbox interfaces.MailboxClient
	parser  interfaces.EmailParser
	policy  policyChecker
	cipher  interfaces.CredentialCipher
	router  interfaces.EmailRouter
	// storage is optional; when nil attachment content is skipped with a
	// warning and only metadata is persisted.
	storage interfaces.StorageService
}

func NewEmailIngestor(
	log logger.Logger,
	cfg *config.IngestionConfig,
	repos Repositories,
	mailbox interfaces.MailboxClient,
	emailParser interfaces.EmailParser,
	policyCheck policyChecker,
	cipher interfaces.CredentialCipher,
	router interfaces.EmailRouter,
	storage interfaces.StorageService,
) interfaces.EmailIngestor {
	return &emailIngestor{
		log:     log,
		cfg:     cfg,
		repos:   repos,
		mailbox: mailbox,
		parser:  emailParser,
		policy:  policyCheck,
		cipher:  cipher,
		router:  router,
		storage: storage,
	}
}

// PollMailboxes runs one ingestion per active account matching the filter,
// concurrently. Accounts are isolated: one account's failure never blocks
// or fails another's.
func (s *emailIngestor) PollMailboxes(ctx context.Context, opts dto.PollOptions) ([]dto.BatchResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.PollMailboxes")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("organizationId", opts.OrganizationID)
	span.SetTag("accountConfigId", opts.AccountConfigID)

	accounts, err := s.repos.Accounts.GetActive(ctx, opts.OrganizationID, opts.AccountConfigID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to load active account configs")
	}
	span.SetTag("accounts", len(accounts))
	if len(accounts) == 0 {
		return nil, nil
	}

	results := make([]dto.BatchResult, len(accounts))
	var wg sync.WaitGroup
	for i, account := range accounts {
		wg.Add(1)
		go func(idx int, account *models.EmailAccountConfig) {
			defer wg.Done()
			results[idx] = s.pollAccount(ctx, account, opts)
		}(i, account)
	}
	wg.Wait()

	return results, nil
}

// pollAccount runs one account's full ingestion under a deadline and owns
// its batch row lifecycle. All failures are absorbed into the returned
// batch result.
func (s *emailIngestor) pollAccount(ctx context.Context, account *models.EmailAccountConfig, opts dto.PollOptions) dto.BatchResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.pollAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, account.OrganizationID)
	tracing.TagEntity(span, account.ID)

	timeout := time.Duration(s.cfg.AccountPollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := dto.BatchResult{
		AccountConfigID: account.ID,
		OrganizationID:  account.OrganizationID,
		Status:          enum.BatchFailed,
	}

	batch := &models.IngestionBatch{
		EmailAccountConfigID: account.ID,
		OrganizationID:       account.OrganizationID,
		Status:               enum.BatchRunning,
		StartedAt:            utils.Now(),
	}
	batchID, err := s.repos.Batches.Create(ctx, batch)
	if err != nil {
		result.ErrorSummary = "failed to create ingestion batch: " + err.Error()
		tracing.TraceErr(span, err)
		return result
	}
	result.BatchID = batchID

	fetched, persisted, failed, failures := s.ingestAccount(ctx, account, batchID, opts)

	result.TotalFetched = fetched
	result.TotalPersisted = persisted
	result.TotalFailed = failed
	result.ErrorSummary = joinErrors(failures)

	// A batch fails only when nothing was persisted and at least one
	// message (or the fetch itself) failed; partial success still
	// completes.
	if persisted > 0 || failed == 0 {
		result.Status = enum.BatchCompleted
	}

	if err := s.repos.Batches.Finalize(ctx, batchID, result.Status, fetched, persisted, failed, result.ErrorSummary); err != nil {
		s.log.Errorf("failed to finalize batch %s: %v", batchID, err)
		tracing.TraceErr(span, err)
	}

	// The poll watermark only advances on a completed batch.
	if result.Status == enum.BatchCompleted {
		if err := s.repos.Accounts.UpdateLastSuccessfulPoll(ctx, account.ID, utils.Now()); err != nil {
			s.log.Warnf("failed to update poll watermark for account %s: %v", account.ID, err)
		}
	}

	span.SetTag("status", result.Status.String())
	span.SetTag("fetched", fetched)
	span.SetTag("persisted", persisted)
	span.SetTag("failed", failed)
	return result
}

// ingestAccount fetches unread messages and processes them sequentially so
// batch counters update deterministically.
func (s *emailIngestor) ingestAccount(ctx context.Context, account *models.EmailAccountConfig, batchID string, opts dto.PollOptions) (fetched, persisted, failed int, failures []string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.ingestAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	// Credentials are decrypted here, immediately before dialing, and
	// the plaintext stays inside the connection value.
	password, err := s.cipher.Decrypt(account.EncryptedPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, 0, 1, []string{"failed to decrypt mailbox credentials: " + err.Error()}
	}

	conn := interfaces.MailboxConnection{
		Host:     account.ImapHost,
		Port:     account.ImapPort,
		UseSSL:   account.ImapUseSSL,
		Username: account.Username,
		Password: password,
	}

	maxMessages := opts.MaxMessages
	if maxMessages <= 0 {
		maxMessages = s.cfg.MaxMessages
	}

	rawMessages, err := s.mailbox.FetchUnreadMessages(ctx, conn, maxMessages)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, 0, 1, []string{"mailbox fetch failed: " + err.Error()}
	}

	fetched = len(rawMessages)
	var processedIDs []string

	for i := range rawMessages {
		raw := &rawMessages[i]
		if err := s.ingestMessage(ctx, account, batchID, raw); err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("message %s: %v", raw.ProviderID, err))
			s.log.Warnf("failed to ingest message %s from account %s: %v", raw.ProviderID, account.ID, err)
			continue
		}
		persisted++
		if raw.ProviderID != "" {
			processedIDs = append(processedIDs, raw.ProviderID)
		}
	}

	// Best-effort: a failure to flag remote messages never fails the
	// batch, the messages are just re-fetched next poll and deduplicated
	// by the router's linked checks.
	if len(processedIDs) > 0 {
		if err := s.mailbox.MarkProcessed(ctx, conn, processedIDs); err != nil {
			s.log.Warnf("failed to mark %d messages processed on account %s: %v", len(processedIDs), account.ID, err)
		}
	}

	return fetched, persisted, failed, failures
}

// ingestMessage drives one raw message through parse, policy check,
// persistence and routing. Parse/policy/persistence failures fail only
// this message; a routing failure after persistence is recorded and
// swallowed because the message is already safely ingested.
func (s *emailIngestor) ingestMessage(ctx context.Context, account *models.EmailAccountConfig, batchID string, raw *dto.RawMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.ingestMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, account.OrganizationID)

	// Account-level overrides win over the deployment defaults; the policy
	// package itself falls back to the built-in ceiling when both are zero.
	allowedMimeTypes := s.cfg.AllowedMimeTypes
	if len(account.AllowedMimeTypes) > 0 {
		allowedMimeTypes = []string(account.AllowedMimeTypes)
	}
	maxSizeBytes := utils.GetOrDefault(account.MaxEmailSizeBytes, s.cfg.MaxEmailSizeBytes)

	pctx := dto.ParseContext{
		OrganizationID:       account.OrganizationID,
		EmailAccountConfigID: account.ID,
		Direction:            enum.EmailInbound,
		AllowedMimeTypes:     allowedMimeTypes,
	}

	envelope, attachments, err := s.parser.Parse(ctx, raw, pctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	limits := policy.Limits{
		MaxSizeBytes:     maxSizeBytes,
		AllowedMimeTypes: allowedMimeTypes,
	}
	if _, err = s.policy.Check(ctx, envelope, attachments, limits); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	thread, err := s.findOrCreateThread(ctx, envelope, raw)
	if err != nil {
		tracing.TraceErr(span, err)
		return er.NewAppErrorWithCause(er.CodeEmailPersistence, "failed to resolve email thread", err)
	}
	envelope.ThreadID = thread.ID

	if _, err = s.repos.Messages.Create(ctx, envelope); err != nil {
		tracing.TraceErr(span, err)
		return er.NewAppErrorWithCause(er.CodeEmailPersistence, "failed to persist email message", err)
	}
	tracing.TagEntity(span, envelope.ID)

	if err = s.persistAttachments(ctx, envelope, attachments, raw); err != nil {
		tracing.TraceErr(span, err)
		return er.NewAppErrorWithCause(er.CodeEmailPersistence, "failed to persist attachments", err)
	}

	s.recordEvent(ctx, envelope, batchID, enum.EventParsed, models.JSONMap{
		"sizeBytes":       envelope.SizeBytes,
		"attachmentCount": len(attachments),
		"threadId":        thread.ID,
	})

	// Hand-off to the router. Classification failures do not un-persist
	// the message; the router has already recorded the audit event.
	if _, err = s.router.RouteToWorkflow(ctx, envelope, dto.RoutingOptions{IngestionBatchID: batchID}); err != nil {
		s.log.Warnf("routing failed for envelope %s (still ingested): %v", envelope.ID, err)
	}

	return nil
}

// findOrCreateThread resolves the conversation row for an envelope. Key
// preference: provider thread id, then message-id header, then a synthetic
// hash of sender and normalized subject.
func (s *emailIngestor) findOrCreateThread(ctx context.Context, envelope *models.EmailMessage, raw *dto.RawMessage) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.findOrCreateThread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	threadKey := envelope.ThreadIDHeaderValue()
	if threadKey == "" {
		threadKey = envelope.MessageIDHeader
	}
	if threadKey == "" {
		threadKey = utils.SyntheticThreadKey(envelope.FromAddress, utils.NormalizeSubject(envelope.Subject))
	}
	span.SetTag("threadKey", threadKey)

	messageAt := utils.Now()
	if envelope.ReceivedAt != nil {
		messageAt = *envelope.ReceivedAt
	}

	thread, err := s.repos.Threads.GetByKey(ctx, envelope.OrganizationID, threadKey)
	if err != nil {
		return nil, err
	}
	if thread != nil {
		if err := s.repos.Threads.TouchLastMessage(ctx, thread.ID, utils.NormalizeSubject(envelope.Subject), messageAt); err != nil {
			s.log.Warnf("failed to touch thread %s: %v", thread.ID, err)
		}
		return thread, nil
	}

	thread = &models.EmailThread{
		OrganizationID:  envelope.OrganizationID,
		ThreadKey:       threadKey,
		SubjectSnapshot: utils.NormalizeSubject(envelope.Subject),
		LastMessageAt:   &messageAt,
	}
	if _, err := s.repos.Threads.Create(ctx, thread); err != nil {
		// Another account may have raced on the same synthetic key; the
		// unique (organization, key) index makes the loser re-read.
		existing, lookupErr := s.repos.Threads.GetByKey(ctx, envelope.OrganizationID, threadKey)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return thread, nil
}

// persistAttachments uploads attachment content under a content-addressed
// key and saves the metadata rows. Without a configured attachment store
// the content is skipped with a warning and metadata keeps an empty
// storage key.
func (s *emailIngestor) persistAttachments(ctx context.Context, envelope *models.EmailMessage, attachments []*models.EmailAttachment, raw *dto.RawMessage) error {
	if len(attachments) == 0 {
		return nil
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "emailIngestor.persistAttachments")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("count", len(attachments))

	for i, attachment := range attachments {
		attachment.EmailMessageID = envelope.ID

		var content []byte
		if i < len(raw.Attachments) {
			content = raw.Attachments[i].Content
		}

		if len(content) > 0 {
			attachment.Checksum = utils.Checksum(content)
			if s.storage != nil {
				key := fmt.Sprintf("email/%s/%d-%s", envelope.ID, i, utils.SanitizeFilename(attachment.Filename))
				if err := s.storage.Upload(ctx, key, content, attachment.ContentType); err != nil {
					return errors.Wrapf(err, "failed to upload attachment %s", attachment.Filename)
				}
				attachment.StorageKey = key
			} else {
				s.log.Warnf("no attachment store configured, skipping content upload for %s (envelope %s)", attachment.Filename, envelope.ID)
			}
		}

		if _, err := s.repos.Attachments.Create(ctx, attachment); err != nil {
			return errors.Wrapf(err, "failed to persist attachment %s", attachment.Filename)
		}
	}

	return nil
}

func (s *emailIngestor) recordEvent(ctx context.Context, envelope *models.EmailMessage, batchID string, eventType enum.ProcessingEventType, details models.JSONMap) {
	event := &models.ProcessingEvent{
		OrganizationID: envelope.OrganizationID,
		EmailMessageID: envelope.ID,
		EventType:      eventType,
		Details:        details,
	}
	if batchID != "" {
		event.IngestionBatchID = &batchID
	}
	if err := s.repos.Events.Record(ctx, event); err != nil {
		s.log.Errorf("failed to record %s processing event for envelope %s: %v", eventType, envelope.ID, err)
	}
}

// joinErrors flattens per-message failures into the batch error summary,
// truncated to the column limit.
func joinErrors(failures []string) string {
	if len(failures) == 0 {
		return ""
	}
	return utils.Truncate(strings.Join(failures, "; "), errorSummaryLimit)
}
