package imapclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"strconv"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/tracing"
)

const (
	dialTimeout  = 30 * time.Second
	loginTimeout = 30 * time.Second
	inboxFolder  = "INBOX"
)

type imapMailboxClient struct {
	log logger.Logger
}

func NewIMAPMailboxClient(log logger.Logger) interfaces.MailboxClient {
	return &imapMailboxClient{log: log}
}

// FetchUnreadMessages dials the account, searches INBOX for unseen
// messages and returns up to max of them in mailbox order, fully parsed
// (headers, bodies, attachment content).
func (s *imapMailboxClient) FetchUnreadMessages(ctx context.Context, conn interfaces.MailboxConnection, max int) ([]dto.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapMailboxClient.FetchUnreadMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("host", conn.Host)
	span.SetTag("username", conn.Username)
	span.SetTag("max", max)

	c, err := s.connect(ctx, conn)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	if _, err = c.Select(inboxFolder, false); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to select INBOX")
	}

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to search for unread messages")
	}
	span.SetTag("unread", len(uids))

	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchUid, goimap.FetchRFC822Size, section.FetchItem()}

	messages := make(chan *goimap.Message, len(uids))
	fetchErr := make(chan error, 1)
	go func() {
		fetchErr <- c.UidFetch(seqSet, items, messages)
	}()

	var rawMessages []dto.RawMessage
	for msg := range messages {
		raw, err := s.toRawMessage(msg, section)
		if err != nil {
			s.log.Warnf("skipping unreadable message uid %d: %v", msg.Uid, err)
			continue
		}
		rawMessages = append(rawMessages, *raw)
	}

	if err = <-fetchErr; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to fetch messages")
	}

	span.SetTag("fetched", len(rawMessages))
	return rawMessages, nil
}

// MarkProcessed flags the given UIDs as seen. Best-effort from the
// caller's perspective.
func (s *imapMailboxClient) MarkProcessed(ctx context.Context, conn interfaces.MailboxConnection, providerIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapMailboxClient.MarkProcessed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("count", len(providerIDs))

	if len(providerIDs) == 0 {
		return nil
	}

	c, err := s.connect(ctx, conn)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer c.Logout()

	if _, err = c.Select(inboxFolder, false); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to select INBOX")
	}

	seqSet := new(goimap.SeqSet)
	for _, id := range providerIDs {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			s.log.Warnf("ignoring non-numeric provider id %q", id)
			continue
		}
		seqSet.AddNum(uint32(uid))
	}
	if seqSet.Empty() {
		return nil
	}

	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	flags := []interface{}{goimap.SeenFlag}
	if err = c.UidStore(seqSet, item, flags, nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to mark messages as seen")
	}

	return nil
}

func (s *imapMailboxClient) connect(ctx context.Context, conn interfaces.MailboxConnection) (*client.Client, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapMailboxClient.connect")
	defer span.Finish()
	span.SetTag("host", conn.Host)
	span.SetTag("port", conn.Port)
	span.SetTag("tls", conn.UseSSL)

	serverAddr := fmt.Sprintf("%s:%d", conn.Host, conn.Port)
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}

	var c *client.Client
	var err error
	if conn.UseSSL {
		c, err = client.DialWithDialerTLS(dialer, serverAddr, &tls.Config{ServerName: conn.Host})
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	c.Timeout = loginTimeout
	if err = c.Login(conn.Username, conn.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to login as %s", conn.Username)
	}
	c.Timeout = 0

	return c, nil
}

// toRawMessage parses one fetched IMAP message body with enmime into the
// canonical raw form.
func (s *imapMailboxClient) toRawMessage(msg *goimap.Message, section *goimap.BodySectionName) (*dto.RawMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, errors.New("message has no body section")
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, errors.Wrap(err, "failed to read message body")
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	headers := map[string]string{}
	for _, key := range envelope.GetHeaderKeys() {
		headers[key] = envelope.GetHeader(key)
	}

	raw := &dto.RawMessage{
		ProviderID:      strconv.FormatUint(uint64(msg.Uid), 10),
		MessageIDHeader: envelope.GetHeader("Message-Id"),
		ThreadIDHeader:  firstHeader(envelope, "X-Thread-Id", "Thread-Index", "X-Gm-Thrid"),
		From:            envelope.GetHeader("From"),
		To:              addressHeader(envelope, "To"),
		Cc:              addressHeader(envelope, "Cc"),
		Bcc:             addressHeader(envelope, "Bcc"),
		Subject:         envelope.GetHeader("Subject"),
		Headers:         headers,
		TextBody:        envelope.Text,
		HTMLBody:        envelope.HTML,
		SizeBytes:       int64(msg.Size),
	}

	if date, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil && !date.IsZero() {
		sent := date.UTC()
		raw.SentAt = &sent
	}
	received := time.Now().UTC()
	raw.ReceivedAt = &received

	for _, part := range envelope.Attachments {
		raw.Attachments = append(raw.Attachments, dto.RawAttachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			SizeBytes:   int64(len(part.Content)),
			ContentID:   part.ContentID,
			Content:     part.Content,
		})
	}
	for _, part := range envelope.Inlines {
		if part.FileName == "" && part.ContentID == "" {
			continue
		}
		raw.Attachments = append(raw.Attachments, dto.RawAttachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			SizeBytes:   int64(len(part.Content)),
			IsInline:    true,
			ContentID:   part.ContentID,
			Content:     part.Content,
		})
	}

	return raw, nil
}

func firstHeader(envelope *enmime.Envelope, keys ...string) string {
	for _, key := range keys {
		if v := envelope.GetHeader(key); v != "" {
			return v
		}
	}
	return ""
}

func addressHeader(envelope *enmime.Envelope, key string) []string {
	value := envelope.GetHeader(key)
	if value == "" {
		return nil
	}
	return []string{value}
}
