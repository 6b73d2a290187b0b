package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/logger"
)

func newTestParser() *emailParser {
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	return &emailParser{log: log}
}

func testParseContext() dto.ParseContext {
	return dto.ParseContext{
		OrganizationID:       "org_1",
		EmailAccountConfigID: "acct_1",
		Direction:            enum.EmailInbound,
	}
}

func TestParse_NormalizesHeadersAndAddresses(t *testing.T) {
	p := newTestParser()
	received := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	raw := &dto.RawMessage{
		MessageIDHeader: "<msg-123@mail.example.com>",
		From:            `"Jane Smith" <Jane.Smith@Example.COM>`,
		To:              []string{"ops@example.com, Support Team <support@example.com>"},
		Cc:              []string{"audit@example.com"},
		Subject:         "  Printer broken  ",
		Headers: map[string]string{
			"X-Mailer":     "TestMailer",
			"Content-Type": "text/plain",
		},
		TextBody:   "The printer on floor 2 is broken.",
		ReceivedAt: &received,
	}

	envelope, attachments, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)
	require.NotNil(t, envelope)

	assert.Equal(t, "org_1", envelope.OrganizationID)
	assert.Equal(t, "acct_1", envelope.EmailAccountConfigID)
	assert.Equal(t, "msg-123@mail.example.com", envelope.MessageIDHeader)
	assert.Equal(t, "jane.smith@example.com", envelope.FromAddress)
	assert.Equal(t, []string{"ops@example.com", "support@example.com"}, []string(envelope.ToAddresses))
	assert.Equal(t, []string{"audit@example.com"}, []string(envelope.CcAddresses))
	assert.Equal(t, "Printer broken", envelope.Subject)
	assert.Equal(t, "TestMailer", envelope.RawHeaders["x-mailer"])
	assert.Equal(t, enum.SensitivityNormal, envelope.Sensitivity)
	assert.Empty(t, attachments)
}

func TestParse_PreservesDuplicateRecipients(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:     "a@example.com",
		To:       []string{"ops@example.com", "ops@example.com"},
		Subject:  "dup",
		TextBody: "body",
	}

	envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com", "ops@example.com"}, []string(envelope.ToAddresses))
}

func TestParse_DerivesTextFallbackFromHTML(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:     "a@example.com",
		To:       []string{"b@example.com"},
		Subject:  "html only",
		HTMLBody: `<html><head><style>p {color:red}</style></head><body><script>alert(1)</script><p>Hello</p><p>World</p></body></html>`,
	}

	envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)

	assert.NotContains(t, envelope.HTMLBody, "<script>")
	assert.NotContains(t, envelope.HTMLBody, "<style>")
	assert.Contains(t, envelope.TextBody, "Hello")
	assert.Contains(t, envelope.TextBody, "World")
	assert.NotContains(t, envelope.TextBody, "alert(1)")
	assert.NotContains(t, envelope.TextBody, "color:red")
}

func TestParse_SanitizesEventHandlersAndJavascriptURIs(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:     "a@example.com",
		To:       []string{"b@example.com"},
		Subject:  "hostile html",
		TextBody: "plain",
		HTMLBody: `<div onclick="steal()"><a href="javascript:evil()">click</a></div>`,
	}

	envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)

	assert.NotContains(t, envelope.HTMLBody, "onclick")
	assert.NotContains(t, envelope.HTMLBody, "javascript:")
}

func TestParse_SizeEstimate(t *testing.T) {
	p := newTestParser()

	t.Run("trusts upstream byte count", func(t *testing.T) {
		raw := &dto.RawMessage{
			From:      "a@example.com",
			To:        []string{"b@example.com"},
			Subject:   "s",
			TextBody:  "body",
			SizeBytes: 4096,
		}
		envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
		require.NoError(t, err)
		assert.Equal(t, int64(4096), envelope.SizeBytes)
	})

	t.Run("sums fields when unknown", func(t *testing.T) {
		raw := &dto.RawMessage{
			From:     "a@example.com",
			To:       []string{"b@example.com"},
			Subject:  "abc",
			TextBody: "defgh",
			Attachments: []dto.RawAttachment{
				{Filename: "f.pdf", ContentType: "application/pdf", SizeBytes: 100},
			},
		}
		envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
		require.NoError(t, err)
		assert.Equal(t, int64(3+5+100), envelope.SizeBytes)
	})
}

func TestParse_SensitivityDerivation(t *testing.T) {
	p := newTestParser()

	t.Run("vocabulary match in subject", func(t *testing.T) {
		raw := &dto.RawMessage{
			From:     "a@example.com",
			To:       []string{"b@example.com"},
			Subject:  "Confidential: salary review",
			TextBody: "body",
		}
		envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
		require.NoError(t, err)
		assert.Equal(t, enum.SensitivitySensitive, envelope.Sensitivity)
	})

	t.Run("vocabulary match in body", func(t *testing.T) {
		raw := &dto.RawMessage{
			From:     "a@example.com",
			To:       []string{"b@example.com"},
			Subject:  "follow up",
			TextBody: "This relates to an ongoing harassment case.",
		}
		envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
		require.NoError(t, err)
		assert.Equal(t, enum.SensitivitySensitive, envelope.Sensitivity)
	})

	t.Run("context override wins", func(t *testing.T) {
		raw := &dto.RawMessage{
			From:     "a@example.com",
			To:       []string{"b@example.com"},
			Subject:  "plain subject",
			TextBody: "plain body",
		}
		pctx := testParseContext()
		pctx.SensitivityOverride = enum.SensitivityHighlySensitive
		envelope, _, err := p.Parse(context.Background(), raw, pctx)
		require.NoError(t, err)
		assert.Equal(t, enum.SensitivityHighlySensitive, envelope.Sensitivity)
	})
}

func TestParse_SecurityFlags(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:     "a@example.com",
		To:       []string{"b@example.com"},
		Subject:  "encrypted",
		TextBody: "body",
		Headers: map[string]string{
			"Content-Type":  `multipart/encrypted; protocol="application/pgp-encrypted"`,
			"X-Spam-Score":  "2.1",
			"X-Spam-Status": "No, score=2.1",
		},
	}

	envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)

	assert.Equal(t, true, envelope.SecurityFlags["pgpEncrypted"])
	assert.Equal(t, "2.1", envelope.SecurityFlags["x-spam-score"])
	assert.Equal(t, "No, score=2.1", envelope.SecurityFlags["x-spam-status"])
}

func TestParse_AttachmentAllowList(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:     "a@example.com",
		To:       []string{"b@example.com"},
		Subject:  "attachments",
		TextBody: "body",
		Attachments: []dto.RawAttachment{
			{Filename: "doc.pdf", ContentType: "application/pdf", SizeBytes: 10},
			{Filename: "run.exe", ContentType: "application/x-msdownload", SizeBytes: 20},
			{Filename: "pic.png", ContentType: "image/png; name=pic.png", SizeBytes: 30, IsInline: true},
		},
	}

	t.Run("empty allow-list allows everything", func(t *testing.T) {
		_, attachments, err := p.Parse(context.Background(), raw, testParseContext())
		require.NoError(t, err)
		require.Len(t, attachments, 3)
		for _, a := range attachments {
			assert.True(t, a.Allowed)
		}
	})

	t.Run("allow-list with wildcard major type", func(t *testing.T) {
		pctx := testParseContext()
		pctx.AllowedMimeTypes = []string{"application/pdf", "image/*"}
		_, attachments, err := p.Parse(context.Background(), raw, pctx)
		require.NoError(t, err)
		require.Len(t, attachments, 3)
		assert.True(t, attachments[0].Allowed)
		assert.False(t, attachments[1].Allowed)
		assert.True(t, attachments[2].Allowed)
		assert.True(t, attachments[2].IsInline)
	})
}

func TestParse_ProviderThreadIDStoredInHeaders(t *testing.T) {
	p := newTestParser()

	raw := &dto.RawMessage{
		From:           "a@example.com",
		To:             []string{"b@example.com"},
		Subject:        "threaded",
		TextBody:       "body",
		ThreadIDHeader: "thread-789",
	}

	envelope, _, err := p.Parse(context.Background(), raw, testParseContext())
	require.NoError(t, err)
	assert.Equal(t, "thread-789", envelope.ThreadIDHeaderValue())
}
