package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticThreadKeyIsDeterministic(t *testing.T) {
	a := SyntheticThreadKey("tenant@example.com", "Leak in roof")
	b := SyntheticThreadKey("tenant@example.com", "Leak in roof")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSyntheticThreadKeyIgnoresSubjectCase(t *testing.T) {
	a := SyntheticThreadKey("tenant@example.com", "Leak in roof")
	b := SyntheticThreadKey("tenant@example.com", "LEAK IN ROOF")
	assert.Equal(t, a, b)
}

func TestSyntheticThreadKeyVariesByInput(t *testing.T) {
	base := SyntheticThreadKey("tenant@example.com", "Leak in roof")
	assert.NotEqual(t, base, SyntheticThreadKey("other@example.com", "Leak in roof"))
	assert.NotEqual(t, base, SyntheticThreadKey("tenant@example.com", "Broken heater"))
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("attachment content"))
	b := Checksum([]byte("attachment content"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Checksum([]byte("different content")))
}
