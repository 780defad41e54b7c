package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOneTimeSecret(t *testing.T) {
	s, err := NewOneTimeSecret("alice", 20)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.Len(t, s.Secret, 20)
	assert.False(t, s.Confirmed)

	other, err := NewOneTimeSecret("alice", 20)
	require.NoError(t, err)
	assert.NotEqual(t, s.Secret, other.Secret)

	_, err = NewOneTimeSecret("alice", 0)
	assert.Error(t, err)
}

func TestOneTimeSecret_Confirm(t *testing.T) {
	s := &OneTimeSecret{Username: "alice", Secret: []byte("12345678901234567890")}
	assert.True(t, s.Confirm())
	assert.True(t, s.Confirmed)
	assert.False(t, s.Confirm())
}

func TestEncodeDecodeSecret(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte("12345678901234567890"),
		[]byte("hello"),
		{0xde, 0xad},
		{0x00},
	} {
		encoded := EncodeSecret(raw)
		decoded, err := DecodeSecret(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, raw, decoded)

		// remote rollouts hand back lower-case unpadded values
		decoded, err = DecodeSecret(" " + strings.ToLower(strings.TrimRight(encoded, "=")) + "\n")
		require.NoError(t, err, encoded)
		assert.Equal(t, raw, decoded)
	}

	s := &OneTimeSecret{Secret: []byte("12345678901234567890")}
	assert.Equal(t, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", s.Encoded())
}

func TestDecodeSecret_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"outside alphabet", "%%%"},
		{"digits outside alphabet", "GEZ10"},
		{"one symbol", "A"},
		{"three symbols", "ABC"},
		{"six symbols", "ABCDEF"},
		{"padding in the middle", "GE==GEZD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				b   []byte
				err error
			)
			assert.NotPanics(t, func() { b, err = DecodeSecret(tt.encoded) })
			assert.Error(t, err)
			assert.Nil(t, b)
		})
	}
}
