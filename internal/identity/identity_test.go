package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateCreatesAndReusesSecret(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, Exists(dir))

	first, err := LoadOrGenerate(dir, "")
	require.NoError(t, err)
	assert.True(t, Exists(dir))

	second, err := LoadOrGenerate(dir, "")
	require.NoError(t, err)

	assert.Equal(t, first.PublicKeyHex(), second.PublicKeyHex())
}

func TestLoadOrGenerateWithPassphraseRoundTrips(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerate(dir, "correct horse battery staple")
	require.NoError(t, err)

	second, err := LoadOrGenerate(dir, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, first.PublicKeyHex(), second.PublicKeyHex())

	_, err = LoadOrGenerate(dir, "wrong passphrase")
	assert.Error(t, err)
}

func TestLoadOrGenerateRejectsTruncatedSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "punctured_secret.key")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o600))

	_, err := LoadOrGenerate(dir, "")
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}
