package auth

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *TokenCipher {
	t.Helper()
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)

	c, err := NewTokenCipher(key)
	require.NoError(t, err)
	return c
}

func TestNewTokenCipher_KeyValidation(t *testing.T) {
	_, err := NewTokenCipher("not-hex")
	assert.Error(t, err)

	// Valid hex but wrong length
	_, err = NewTokenCipher("deadbeef")
	assert.Error(t, err)

	_, err = NewTokenCipher(strings.Repeat("ab", 32))
	assert.NoError(t, err)
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)

	plaintext := "kakao-access-token-value"
	sealed, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, sealed, plaintext)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestTokenCipher_NonDeterministic(t *testing.T) {
	c := testCipher(t)

	a, err := c.Encrypt("same token")
	require.NoError(t, err)
	b, err := c.Encrypt("same token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCipher_Tampered(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Encrypt("token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)

	// Flip a bit in the ciphertext body
	raw[len(raw)-1] ^= 0x01
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestTokenCipher_TruncatedAndGarbage(t *testing.T) {
	c := testCipher(t)

	_, err := c.Decrypt("%%%not-base64%%%")
	assert.Error(t, err)

	// Shorter than a nonce
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestTokenCipher_WrongKey(t *testing.T) {
	a := testCipher(t)
	b := testCipher(t)

	sealed, err := a.Encrypt("token")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)
}

func TestGenerateEncryptionKey(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)
}
