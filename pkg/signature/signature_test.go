package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMessage(t *testing.T) {
	msg := CanonicalMessage("alice", "bob", "10.00", "2024-01-15 14:30:52")
	assert.Equal(t, "alice|bob|10.00|2024-01-15 14:30:52", msg)
}

func TestSignAndVerify(t *testing.T) {
	pubPEM, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := CanonicalMessage("alice", "bob", "10.00", "n1")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)

	ok, err := Verify(msg, sig, pubPEM)
	require.NoError(t, err)
	assert.True(t, ok)

	// 消息被篡改后验签失败
	ok, err = Verify(CanonicalMessage("alice", "bob", "99.00", "n1"), sig, pubPEM)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWrongKey(t *testing.T) {
	_, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := CanonicalMessage("alice", "bob", "10.00", "n1")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)

	ok, err := Verify(msg, sig, otherPub)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMalformedInput(t *testing.T) {
	pubPEM, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := "alice|bob|10.00|n1"
	sig, err := Sign(msg, priv)
	require.NoError(t, err)

	_, err = Verify(msg, sig, "not a pem key")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = Verify(msg, "%%%not-base64%%%", pubPEM)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
