package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "Leak in roof", NormalizeSubject("Leak in roof"))
	assert.Equal(t, "Leak in roof", NormalizeSubject("Re: Leak in roof"))
	assert.Equal(t, "Leak in roof", NormalizeSubject("RE: FWD: Leak in roof"))
	assert.Equal(t, "Leak in roof", NormalizeSubject("Fw: Re[2]: Leak in roof"))
	assert.Equal(t, "Leak in roof", NormalizeSubject("  Re:   Leak in roof  "))
	assert.Equal(t, "", NormalizeSubject("Re:"))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@mail.example.com", NormalizeMessageID("<abc@mail.example.com>"))
	assert.Equal(t, "abc@mail.example.com", NormalizeMessageID(" abc@mail.example.com "))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "invoice.pdf", SanitizeFilename("invoice.pdf"))
	assert.Equal(t, "my_report_final.pdf", SanitizeFilename("my report/final.pdf"))
	assert.Equal(t, "attachment", SanitizeFilename(""))
	assert.Equal(t, "attachment", SanitizeFilename("..."))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))

	out := Truncate("this is a longer sentence", 10)
	assert.Len(t, out, 10)
	assert.Equal(t, "this is...", out)
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; cutting at max-3 would land mid-rune.
	s := "Fuite d'eau évier cuisine étage"
	for max := 4; max < len(s); max++ {
		out := Truncate(s, max)
		assert.True(t, utf8.ValidString(out), "max=%d produced invalid UTF-8: %q", max, out)
		assert.LessOrEqual(t, len(out), max)
	}

	assert.True(t, utf8.ValidString(Truncate("ééé", 3)))
	assert.True(t, utf8.ValidString(Truncate("ééé", 2)))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomainFromEmail("jane@example.com"))
	assert.Equal(t, "example.com", ExtractDomainFromEmail("Jane Doe <jane@EXAMPLE.com>"))
	assert.Equal(t, "", ExtractDomainFromEmail("not-an-email"))
	assert.Equal(t, "", ExtractDomainFromEmail(""))
}
