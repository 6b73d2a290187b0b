package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	ciphertext, err := encryptor.Encrypt("imap-password-123")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "imap-password-123")

	plaintext, err := encryptor.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "imap-password-123", plaintext)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	first, err := encryptor.Encrypt("same secret")
	require.NoError(t, err)
	second, err := encryptor.Encrypt("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	_, err := NewEncryptor("not base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewEncryptor(short)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	ciphertext, err := encryptor.Encrypt("secret")
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xff
	_, err = encryptor.Decrypt(ciphertext)
	assert.Error(t, err)

	_, err = encryptor.Decrypt([]byte("short"))
	assert.Error(t, err)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	first, err := NewEncryptor(testKey(t))
	require.NoError(t, err)
	second, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	ciphertext, err := first.Encrypt("secret")
	require.NoError(t, err)

	_, err = second.Decrypt(ciphertext)
	assert.Error(t, err)
}
