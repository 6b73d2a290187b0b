package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// NormalizeSubject removes reply/forward prefixes like Re:, Fwd: from a
// subject, repeatedly, so "Re: Re: Leak" and "Leak" normalize the same way.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	prefixRegex := regexp.MustCompile(`(?i)^(Re|Fwd|Fw)(\[\d+\])?:\s*`)
	for prefixRegex.MatchString(subject) {
		subject = prefixRegex.ReplaceAllString(subject, "")
		subject = strings.TrimSpace(subject)
	}
	return subject
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename makes a filename safe for use inside a storage key.
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "attachment"
	}
	filename = unsafeFilenameChars.ReplaceAllString(filename, "_")
	filename = strings.Trim(filename, "._")
	if filename == "" {
		return "attachment"
	}
	return filename
}

// Truncate cuts s to at most max bytes, appending an ellipsis marker when
// anything was dropped. The cut never splits a multi-byte rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeBoundary(s, max)]
	}
	return s[:runeBoundary(s, max-3)] + "..."
}

// runeBoundary walks cut back to the start of the rune it landed inside.
func runeBoundary(s string, cut int) int {
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// Handle angle brackets (e.g. "Name <email@domain.com>")
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}
