package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

// sensitiveTerms is the fixed vocabulary that upgrades an envelope to
// sensitive when found in the classification header, subject or body.
var sensitiveTerms = []string{
	"confidential",
	"harassment",
	"medical",
	"patient",
	"complaint",
}

var addressRegex = regexp.MustCompile(`<([^<>]+)>`)

type emailParser struct {
	log logger.Logger
}

func NewEmailParser(log logger.Logger) interfaces.EmailParser {
	return &emailParser{log: log}
}

// Parse turns one raw mailbox message into a canonical envelope plus
// attachment metadata. The output is a point-in-time normalization:
// header keys are lower-cased, addresses are reduced to bare form, the
// HTML body is sanitized and a plain-text fallback is derived when the
// message carries HTML only. Structural acceptance rules (required
// fields, size, MIME types) are enforced downstream by the policy check,
// not here.
func (p *emailParser) Parse(ctx context.Context, raw *dto.RawMessage, pctx dto.ParseContext) (envelope *models.EmailMessage, attachments []*models.EmailAttachment, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailParser.Parse")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(log.String("messageIdHeader", raw.MessageIDHeader))

	defer func() {
		if r := recover(); r != nil {
			err = er.NewAppErrorWithCause(er.CodeEmailParsing, "unexpected failure while parsing email", errors.Errorf("panic: %v", r))
			tracing.TraceErr(span, err)
			envelope = nil
			attachments = nil
		}
	}()

	if raw == nil {
		err := er.NewAppError(er.CodeEmailParsing, "raw message is nil")
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	headers := normalizeHeaders(raw.Headers)

	direction := pctx.Direction
	if direction == "" {
		direction = enum.EmailInbound
	}

	htmlBody := sanitizeHTML(raw.HTMLBody)
	textBody := raw.TextBody
	if textBody == "" && htmlBody != "" {
		textBody = htmlToText(htmlBody)
	}

	envelope = &models.EmailMessage{
		OrganizationID:       pctx.OrganizationID,
		EmailAccountConfigID: pctx.EmailAccountConfigID,
		MessageIDHeader:      utils.NormalizeMessageID(raw.MessageIDHeader),
		Direction:            direction,
		Subject:              strings.TrimSpace(raw.Subject),
		FromAddress:          extractAddress(raw.From),
		ToAddresses:          extractAddressList(raw.To),
		CcAddresses:          extractAddressList(raw.Cc),
		BccAddresses:         extractAddressList(raw.Bcc),
		ReceivedAt:           raw.ReceivedAt,
		SentAt:               raw.SentAt,
		RawHeaders:           headersToJSONMap(headers),
		TextBody:             textBody,
		HTMLBody:             htmlBody,
	}

	if raw.ThreadIDHeader != "" {
		envelope.RawHeaders["x-thread-id"] = raw.ThreadIDHeader
	}

	envelope.SizeBytes = estimateSize(raw, envelope)
	envelope.Sensitivity = deriveSensitivity(envelope, headers, pctx.SensitivityOverride)
	envelope.SecurityFlags = deriveSecurityFlags(headers)

	attachments = make([]*models.EmailAttachment, 0, len(raw.Attachments))
	for _, ra := range raw.Attachments {
		attachments = append(attachments, &models.EmailAttachment{
			Filename:    ra.Filename,
			ContentType: strings.ToLower(strings.TrimSpace(ra.ContentType)),
			ContentID:   ra.ContentID,
			SizeBytes:   ra.SizeBytes,
			IsInline:    ra.IsInline,
			Allowed:     isMimeTypeAllowed(ra.ContentType, pctx.AllowedMimeTypes),
		})
	}

	return envelope, attachments, nil
}

// normalizeHeaders lower-cases header keys; on duplicate keys the last
// value wins.
func normalizeHeaders(headers map[string]string) map[string]string {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return normalized
}

func headersToJSONMap(headers map[string]string) models.JSONMap {
	m := make(models.JSONMap, len(headers))
	for k, v := range headers {
		m[k] = v
	}
	return m
}

// extractAddress reduces `"Name" <addr@example.com>` or a bare address to
// the bare lower-cased address.
func extractAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if match := addressRegex.FindStringSubmatch(value); match != nil {
		value = match[1]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// extractAddressList expands comma-separated entries and reduces each to
// bare form. Duplicates are preserved.
func extractAddressList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if addr := extractAddress(part); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// estimateSize trusts an upstream-reported byte count when present,
// otherwise sums the UTF-8 byte lengths of subject and bodies plus the
// declared attachment sizes.
func estimateSize(raw *dto.RawMessage, envelope *models.EmailMessage) int64 {
	if raw.SizeBytes > 0 {
		return raw.SizeBytes
	}
	size := int64(len(envelope.Subject) + len(envelope.TextBody) + len(envelope.HTMLBody))
	for _, a := range raw.Attachments {
		size += a.SizeBytes
	}
	return size
}

func deriveSensitivity(envelope *models.EmailMessage, headers map[string]string, override enum.EmailSensitivity) enum.EmailSensitivity {
	if override != "" {
		return override
	}

	haystack := strings.ToLower(headers["sensitivity"] + " " + headers["x-classification"] + " " + envelope.Subject + " " + envelope.TextBody)
	for _, term := range sensitiveTerms {
		if strings.Contains(haystack, term) {
			return enum.SensitivitySensitive
		}
	}
	return enum.SensitivityNormal
}

// deriveSecurityFlags detects PGP encryption from content-type/headers and
// copies spam-signal headers verbatim when present.
func deriveSecurityFlags(headers map[string]string) models.JSONMap {
	flags := models.JSONMap{}

	contentType := strings.ToLower(headers["content-type"])
	if strings.Contains(contentType, "multipart/encrypted") ||
		strings.Contains(contentType, "application/pgp-encrypted") ||
		headers["x-pgp-encrypted"] != "" {
		flags["pgpEncrypted"] = true
	}

	for _, h := range []string{"x-spam-score", "x-spam-status", "x-spam-flag"} {
		if v, ok := headers[h]; ok && v != "" {
			flags[h] = v
		}
	}

	return flags
}

// isMimeTypeAllowed checks a content type against the tenant allow-list.
// An empty allow-list allows everything; entries match on the full type or
// the major type (e.g. "image/" prefix entries such as "image/*").
func isMimeTypeAllowed(contentType string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	// Drop parameters like "; charset=utf-8".
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	normalized := make([]string, 0, len(allowList))
	for _, allowed := range allowList {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed != "" {
			normalized = append(normalized, allowed)
		}
	}
	if utils.IsStringInSlice(contentType, normalized) {
		return true
	}
	for _, allowed := range normalized {
		if strings.HasSuffix(allowed, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}
	return false
}
