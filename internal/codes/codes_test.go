package codes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteRoundTrip(t *testing.T) {
	var id [16]byte
	copy(id[:], []byte("0123456789abcdef"))
	nodeID := make([]byte, 33)
	for i := range nodeID {
		nodeID[i] = byte(i)
	}

	c, err := NewInvite(id, nodeID)
	require.NoError(t, err)

	encoded := c.Encode()
	assert.True(t, strings.HasPrefix(encoded, "pct"))

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	gotID, gotNode, err := decoded.AsInvite()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, nodeID, gotNode)

	_, err = decoded.AsRecovery()
	assert.ErrorIs(t, err, ErrWrongVariant)
}

func TestRecoveryRoundTrip(t *testing.T) {
	var id [16]byte
	copy(id[:], []byte("fedcba9876543210"))

	c := NewRecovery(id)
	decoded, err := Decode(c.Encode())
	require.NoError(t, err)

	gotID, err := decoded.AsRecovery()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	_, _, err = decoded.AsInvite()
	assert.ErrorIs(t, err, ErrWrongVariant)
}

func TestDecodeRejectsBadPrefix(t *testing.T) {
	_, err := Decode("xyz00")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsBadHex(t *testing.T) {
	_, err := Decode("pctzz")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	_, err := Decode("pct00")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewInviteRejectsWrongNodeIDLength(t *testing.T) {
	var id [16]byte
	_, err := NewInvite(id, []byte{0x01, 0x02})
	assert.Error(t, err)
}
