package policy

import (
	"context"
	"fmt"
	"regexp"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"

	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
)

// DefaultMaxSizeBytes is the acceptance ceiling applied when the tenant
// account config does not override it.
const DefaultMaxSizeBytes = 10 * 1024 * 1024

// emailRegex is deliberately conservative: local part, one @, and a domain
// containing at least one dot. Not RFC-2822-exhaustive.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Limits are the tenant acceptance rules applied by Check.
type Limits struct {
	// MaxSizeBytes caps the estimated total message size; zero falls back
	// to DefaultMaxSizeBytes.
	MaxSizeBytes int64

	// AllowedMimeTypes is informational here; attachments arrive with
	// their Allowed flag already computed against it.
	AllowedMimeTypes []string
}

// Summary describes what was checked for an accepted envelope.
type Summary struct {
	TotalSizeBytes  int64 `json:"totalSizeBytes"`
	MaxSizeBytes    int64 `json:"maxSizeBytes"`
	AttachmentCount int   `json:"attachmentCount"`
}

type emailPolicy struct{}

func NewEmailPolicy() *emailPolicy {
	return &emailPolicy{}
}

// Check enforces the hard acceptance rules over a parsed envelope. It
// collects every violation before failing: missing subject, missing or
// invalid from address, missing or invalid recipients, missing body,
// disallowed attachment types and the size ceiling. On any violation it
// returns a single validation error whose details enumerate all issues.
// Pure function, no side effects.
func (p *emailPolicy) Check(ctx context.Context, envelope *models.EmailMessage, attachments []*models.EmailAttachment, limits Limits) (*Summary, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "emailPolicy.Check")
	defer span.Finish()
	tracing.TagComponentService(span)

	maxSize := limits.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}

	var issues []er.Issue

	if envelope.Subject == "" {
		issues = append(issues, er.Issue{
			Code:    er.CodeSubjectMissing,
			Message: "subject is required",
			Field:   "subject",
		})
	}

	switch {
	case envelope.FromAddress == "":
		issues = append(issues, er.Issue{
			Code:    er.CodeFromMissing,
			Message: "from address is required",
			Field:   "fromAddress",
		})
	case !emailRegex.MatchString(envelope.FromAddress):
		issues = append(issues, er.Issue{
			Code:    er.CodeFromInvalid,
			Message: fmt.Sprintf("from address %q is not a valid email address", envelope.FromAddress),
			Field:   "fromAddress",
		})
	}

	recipients := envelope.AllRecipients()
	if len(recipients) == 0 {
		issues = append(issues, er.Issue{
			Code:    er.CodeRecipientsMissing,
			Message: "at least one recipient is required",
			Field:   "toAddresses",
		})
	} else {
		for _, addr := range recipients {
			if !emailRegex.MatchString(addr) {
				issues = append(issues, er.Issue{
					Code:    er.CodeRecipientInvalid,
					Message: fmt.Sprintf("recipient %q is not a valid email address", addr),
					Field:   "recipients",
				})
			}
		}
	}

	if !envelope.HasBody() {
		issues = append(issues, er.Issue{
			Code:    er.CodeBodyMissing,
			Message: "at least one of text or html body is required",
			Field:   "body",
		})
	}

	for _, attachment := range attachments {
		if !attachment.Allowed {
			issues = append(issues, er.Issue{
				Code:       er.CodeAttachmentTypeBlocked,
				Message:    fmt.Sprintf("attachment type %q is not allowed", attachment.ContentType),
				Field:      "attachments",
				Attachment: attachment.Filename,
			})
		}
	}

	if envelope.SizeBytes > maxSize {
		issues = append(issues, er.Issue{
			Code:    er.CodeSizeExceeded,
			Message: fmt.Sprintf("total size %d bytes exceeds the limit of %d bytes", envelope.SizeBytes, maxSize),
			Field:   "sizeBytes",
		})
	}

	if len(issues) > 0 {
		err := er.NewValidationError(fmt.Sprintf("email rejected with %d policy violation(s)", len(issues)), issues)
		tracing.TraceErr(span, err, log.Int("issues", len(issues)))
		return nil, err
	}

	return &Summary{
		TotalSizeBytes:  envelope.SizeBytes,
		MaxSizeBytes:    maxSize,
		AttachmentCount: len(attachments),
	}, nil
}
