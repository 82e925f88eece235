package security

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalSignerGeneratesAndReloads(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "node_key.enc")

	first, err := NewLocalSigner(keyPath, "correct-horse")
	require.NoError(t, err)
	require.Len(t, first.PublicKey(), ed25519.PublicKeySize)

	second, err := NewLocalSigner(keyPath, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())
	assert.Equal(t, first.PublicKey(), second.PublicKey())
}

func TestNewLocalSignerWrongPassphrase(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "node_key.enc")
	_, err := NewLocalSigner(keyPath, "right")
	require.NoError(t, err)

	_, err = NewLocalSigner(keyPath, "wrong")
	assert.Error(t, err)
}

func TestNewLocalSignerValidatesArguments(t *testing.T) {
	_, err := NewLocalSigner("", "pass")
	assert.Error(t, err)

	_, err = NewLocalSigner(filepath.Join(t.TempDir(), "node_key.enc"), "")
	assert.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	signer, err := NewLocalSigner(filepath.Join(t.TempDir(), "node_key.enc"), "pass")
	require.NoError(t, err)

	msg := []byte("block content hash")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	assert.True(t, Verify(signer.PublicKey(), msg, sig))
	assert.False(t, Verify(signer.PublicKey(), []byte("tampered"), sig))
	assert.False(t, Verify([]byte("not a key"), msg, sig))
}
