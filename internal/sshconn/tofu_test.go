package sshconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telkar/fleetward/internal/testutil/sshd"
)

func TestKnownKeysTrustOnFirstUse(t *testing.T) {
	keyA := sshd.GenerateHostKey(t).PublicKey()
	keyB := sshd.GenerateHostKey(t).PublicKey()

	k := NewKnownKeys()
	cb := k.Callback()

	// First contact: any key is accepted and remembered.
	require.NoError(t, cb("a.example.com:22", nil, keyA))
	assert.Equal(t, 1, k.Len())

	// Same key again is fine.
	require.NoError(t, cb("a.example.com:22", nil, keyA))

	// A changed key is rejected.
	err := cb("a.example.com:22", nil, keyB)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyMismatch)

	// A different address is a distinct identity.
	require.NoError(t, cb("a.example.com:2222", nil, keyB))
	assert.Equal(t, 2, k.Len())
}
