package server

import (
	"testing"

	"github.com/little-pan/sqlite-server/wire"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	var seed [wire.ChallengeSeedLen]byte
	copy(seed[:], "abcdefghij0123456789")

	sig := scramble("secretHash", seed)
	require.True(t, verifySignature("secretHash", seed, sig))
	require.False(t, verifySignature("wrongHash", seed, sig))
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, constantTimeEqual([]byte("abc"), []byte("abc")))
	require.False(t, constantTimeEqual([]byte("abc"), []byte("abd")))
	require.False(t, constantTimeEqual([]byte("abc"), []byte("ab")))
}
