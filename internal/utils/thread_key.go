package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SyntheticThreadKey derives a deterministic conversation key for messages
// that carry neither a provider thread id nor a message-id header. The key
// is a SHA-256 of "fromAddress::lowercased(subject)" so replies from the
// same sender on the same subject group together.
func SyntheticThreadKey(fromAddress, subject string) string {
	material := fromAddress + "::" + strings.ToLower(strings.TrimSpace(subject))
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// Checksum returns the hex SHA-256 of content, used as attachment checksum.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
