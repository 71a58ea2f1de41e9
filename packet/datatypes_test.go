package packet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableByteInteger(t *testing.T) {
	tests := []struct {
		value uint32
		size  int
	}{
		{0, 1}, {127, 1}, {128, 2}, {16383, 2}, {16384, 3}, {2097151, 3}, {2097152, 4}, {268435455, 4},
	}
	for _, tt := range tests {
		enc, err := encodeLength(tt.value)
		require.NoError(t, err)
		assert.Len(t, enc, tt.size, "value %d", tt.value)
		assert.Equal(t, tt.size, lengthSize(int(tt.value)))

		got, n, err := decodeVBI(enc)
		require.NoError(t, err)
		assert.Equal(t, tt.value, got)
		assert.Equal(t, tt.size, n)
	}
}

func TestVariableByteIntegerBounds(t *testing.T) {
	_, err := encodeLength(uint32(268435456))
	require.ErrorIs(t, err, ErrCorruptData)

	_, err = encodeLength(-1)
	require.ErrorIs(t, err, ErrCorruptData)

	_, _, err = decodeVBI([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	require.ErrorIs(t, err, ErrCorruptData)

	_, _, err = decodeVBI([]byte{0x80, 0x80})
	require.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = decodeVBI(nil)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestVariableByteIntegerWireForm(t *testing.T) {
	enc, err := encodeLength(321)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC1, 0x02}, enc)

	enc, err = encodeLength(268435455)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0x7F}, enc)
}

func TestStrings(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		got, err := decodeUTF8(bytes.NewBuffer(s2b("a/b/c")))
		require.NoError(t, err)
		assert.Equal(t, "a/b/c", got)
	})

	t.Run("Truncate", func(t *testing.T) {
		long := strings.Repeat("x", MaxStringLength+10)
		enc := s2b(long)
		assert.Len(t, enc, 2+MaxStringLength)
		assert.Equal(t, []byte{0xFF, 0xFF}, enc[:2])
	})

	t.Run("TruncateOnCharacter", func(t *testing.T) {
		long := strings.Repeat("a", MaxStringLength-1) + "é"
		enc := s2b(long)
		assert.Len(t, enc, 2+MaxStringLength-1)
		got, err := decodeUTF8(bytes.NewBuffer(enc))
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", MaxStringLength-1), got)

		bin := s2b([]byte(long))
		assert.Len(t, bin, 2+MaxStringLength, "binary data is cut at the limit")
	})

	t.Run("Short", func(t *testing.T) {
		_, err := decodeUTF8(bytes.NewBuffer([]byte{0x00, 0x05, 'a', 'b'}))
		require.ErrorIs(t, err, ErrInsufficientData)

		_, err = decodeUTF8(bytes.NewBuffer([]byte{0x00}))
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		_, err := decodeUTF8(bytes.NewBuffer([]byte{0x00, 0x02, 0xC3, 0x28}))
		require.ErrorIs(t, err, ErrCorruptData)
	})
}

func TestReadBool(t *testing.T) {
	v, err := readBool(bytes.NewBuffer([]byte{1}))
	require.NoError(t, err)
	assert.True(t, v)

	_, err = readBool(bytes.NewBuffer([]byte{2}))
	require.ErrorIs(t, err, ErrCorruptData)
}

func TestReasonCodes(t *testing.T) {
	rc, ok := LookupReasonCode(VERSION500, 0x87)
	require.True(t, ok)
	assert.Equal(t, ErrNotAuthorized, rc)
	assert.True(t, rc.Failed())
	assert.Equal(t, "135:not authorized", rc.Error())

	_, ok = LookupReasonCode(VERSION500, 0x7F)
	assert.False(t, ok)

	assert.Equal(t, Err3IdentifierRejected, connackCode(VERSION311, 0x02))
	assert.Equal(t, "reserved", connackCode(VERSION311, 0x06).Reason)
	assert.Equal(t, ErrClientIdentifierNotValid, connackCode(VERSION500, 0x85))
}
