package dto

import "time"

// RawAttachment is one attachment as fetched from the mailbox, content
// included. Content is dropped after the attachment store accepts it.
type RawAttachment struct {
	Filename    string
	ContentType string
	SizeBytes   int64
	IsInline    bool
	ContentID   string
	Content     []byte
}

// RawMessage is one mailbox message as returned by the mailbox client,
// before any normalization.
type RawMessage struct {
	// ProviderID identifies the message on the remote mailbox (IMAP UID).
	ProviderID      string
	MessageIDHeader string
	// ThreadIDHeader carries the provider conversation id when the mailbox
	// exposes one.
	ThreadIDHeader string

	From         string
	To           []string
	Cc           []string
	Bcc          []string
	Subject      string
	Headers      map[string]string
	TextBody     string
	HTMLBody     string
	ReceivedAt   *time.Time
	SentAt       *time.Time
	// SizeBytes is the upstream-reported message size; zero means unknown
	// and the parser estimates instead.
	SizeBytes   int64
	Attachments []RawAttachment
}
