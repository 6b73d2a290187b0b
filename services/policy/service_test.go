package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/models"
)

func validEnvelope() *models.EmailMessage {
	return &models.EmailMessage{
		OrganizationID: "org_1",
		Subject:        "Printer broken",
		FromAddress:    "jane@example.com",
		ToAddresses:    []string{"ops@example.com"},
		TextBody:       "The printer on floor 2 is broken.",
		SizeBytes:      2048,
	}
}

func TestCheck_AcceptsValidEnvelope(t *testing.T) {
	p := NewEmailPolicy()

	summary, err := p.Check(context.Background(), validEnvelope(), nil, Limits{})
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, int64(2048), summary.TotalSizeBytes)
	assert.Equal(t, int64(DefaultMaxSizeBytes), summary.MaxSizeBytes)
	assert.Equal(t, 0, summary.AttachmentCount)
}

func TestCheck_AggregatesAllIssues(t *testing.T) {
	p := NewEmailPolicy()

	envelope := &models.EmailMessage{
		OrganizationID: "org_1",
		FromAddress:    "not-an-address",
		SizeBytes:      100,
	}

	_, err := p.Check(context.Background(), envelope, nil, Limits{})
	require.Error(t, err)

	var appErr *er.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, er.CodeEmailValidation, appErr.Code)

	issues := appErr.Issues()
	require.Len(t, issues, 4)

	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, er.CodeSubjectMissing)
	assert.Contains(t, codes, er.CodeFromInvalid)
	assert.Contains(t, codes, er.CodeRecipientsMissing)
	assert.Contains(t, codes, er.CodeBodyMissing)
}

func TestCheck_InvalidRecipient(t *testing.T) {
	p := NewEmailPolicy()

	envelope := validEnvelope()
	envelope.CcAddresses = []string{"broken@nodot"}

	_, err := p.Check(context.Background(), envelope, nil, Limits{})
	require.Error(t, err)

	var appErr *er.AppError
	require.ErrorAs(t, err, &appErr)
	issues := appErr.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, er.CodeRecipientInvalid, issues[0].Code)
	assert.Contains(t, issues[0].Message, "broken@nodot")
}

func TestCheck_BlockedAttachment(t *testing.T) {
	p := NewEmailPolicy()

	attachments := []*models.EmailAttachment{
		{Filename: "doc.pdf", ContentType: "application/pdf", Allowed: true},
		{Filename: "run.exe", ContentType: "application/x-msdownload", Allowed: false},
	}

	_, err := p.Check(context.Background(), validEnvelope(), attachments, Limits{})
	require.Error(t, err)

	var appErr *er.AppError
	require.ErrorAs(t, err, &appErr)
	issues := appErr.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, er.CodeAttachmentTypeBlocked, issues[0].Code)
	assert.Equal(t, "run.exe", issues[0].Attachment)
}

func TestCheck_SizeCeiling(t *testing.T) {
	p := NewEmailPolicy()

	t.Run("at limit passes", func(t *testing.T) {
		envelope := validEnvelope()
		envelope.SizeBytes = 1000
		summary, err := p.Check(context.Background(), envelope, nil, Limits{MaxSizeBytes: 1000})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), summary.MaxSizeBytes)
	})

	t.Run("over limit fails", func(t *testing.T) {
		envelope := validEnvelope()
		envelope.SizeBytes = 1001
		_, err := p.Check(context.Background(), envelope, nil, Limits{MaxSizeBytes: 1000})
		require.Error(t, err)

		var appErr *er.AppError
		require.ErrorAs(t, err, &appErr)
		issues := appErr.Issues()
		require.Len(t, issues, 1)
		assert.Equal(t, er.CodeSizeExceeded, issues[0].Code)
	})

	t.Run("default ceiling when unset", func(t *testing.T) {
		envelope := validEnvelope()
		envelope.SizeBytes = DefaultMaxSizeBytes + 1
		_, err := p.Check(context.Background(), envelope, nil, Limits{})
		require.Error(t, err)
		assert.Equal(t, er.CodeEmailValidation, er.CodeOf(err))
	})
}
