package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketIDWraparound(t *testing.T) {
	var ids PacketID
	for want := 1; want <= 65535; want++ {
		id, err := ids.Next(nil)
		require.NoError(t, err)
		require.Equal(t, uint16(want), id)
	}
	id, err := ids.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id, "wraps to 1, never 0")
}

func TestPacketIDSkipsInUse(t *testing.T) {
	var ids PacketID
	inUse := map[uint16]bool{1: true, 2: true, 4: true}
	busy := func(id uint16) bool { return inUse[id] }

	id, err := ids.Next(busy)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), id)
	id, err = ids.Next(busy)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), id)
}

func TestPacketIDExhausted(t *testing.T) {
	var ids PacketID
	_, err := ids.Next(func(uint16) bool { return true })
	assert.ErrorIs(t, err, ErrState)
}
