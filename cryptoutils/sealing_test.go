package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	sealer, err := NewSealer([]byte("correct horse"), salt)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("device share"), []byte("device-share-a"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "device share")

	opened, err := sealer.Open(sealed, []byte("device-share-a"))
	require.NoError(t, err)
	assert.Equal(t, "device share", string(opened))

	_, err = sealer.Open(sealed, []byte("device-share-b"))
	assert.Error(t, err, "value sealed for one key must not open under another")

	other, err := NewSealer([]byte("wrong passphrase"), salt)
	require.NoError(t, err)
	_, err = other.Open(sealed, []byte("device-share-a"))
	assert.Error(t, err)

	_, err = NewSealer(nil, salt)
	assert.Error(t, err)
	_, err = NewSealer([]byte("x"), []byte("short"))
	assert.Error(t, err)
}
