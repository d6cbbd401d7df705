package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("unit-test-secret")
	require.NoError(t, err)

	sealed, err := c.Encrypt("EAAB-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "EAAB-token")

	again, err := c.Encrypt("EAAB-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "EAAB-token", plain)
}

func TestCipherRejectsWrongKeyAndGarbage(t *testing.T) {
	a, err := NewCipher("key-a")
	require.NoError(t, err)
	b, err := NewCipher("key-b")
	require.NoError(t, err)

	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)

	_, err = a.Decrypt("not base64!")
	assert.Error(t, err)

	_, err = a.Decrypt("AAAA")
	assert.Error(t, err)
}

func TestNewCipherRequiresKey(t *testing.T) {
	_, err := NewCipher("")
	assert.ErrorIs(t, err, ErrNoKey)
}
