package mqtt

import (
	"testing"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFightResolveOnce(t *testing.T) {
	i := newInFight()
	calls := 0
	var got packet.Packet
	require.NoError(t, i.Put(PUBACK, 7, func(pkt packet.Packet, err error) {
		calls++
		got = pkt
		assert.NoError(t, err)
	}))
	assert.Equal(t, 1, i.Len())

	ack := &packet.PUBACK{PacketID: 7}
	assert.False(t, i.Resolve(&packet.PUBCOMP{PacketID: 7}, 7), "other kind, same identifier")
	assert.True(t, i.Resolve(ack, 7))
	assert.False(t, i.Resolve(ack, 7))
	assert.Equal(t, 1, calls)
	assert.Same(t, ack, got)
	assert.Zero(t, i.Len())
}

func TestInFightDuplicate(t *testing.T) {
	i := newInFight()
	noop := func(packet.Packet, error) {}
	require.NoError(t, i.Put(SUBACK, 1, noop))
	assert.ErrorIs(t, i.Put(SUBACK, 1, noop), ErrState)
	require.NoError(t, i.Put(UNSUBACK, 1, noop))

	i.Cancel(SUBACK, 1)
	require.NoError(t, i.Put(SUBACK, 1, noop))
}

func TestInFightFailAll(t *testing.T) {
	i := newInFight()
	var errs []error
	for id := uint16(1); id <= 3; id++ {
		require.NoError(t, i.Put(PUBACK, id, func(pkt packet.Packet, err error) {
			assert.Nil(t, pkt)
			errs = append(errs, err)
		}))
	}
	i.FailAll(ErrCancelled)
	i.FailAll(ErrTimeout)

	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCancelled)
	}
	assert.ErrorIs(t, i.Put(PUBACK, 9, func(packet.Packet, error) {}), ErrCancelled)
	_, err := i.Reserve()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestInFightReserve(t *testing.T) {
	i := newInFight()
	before := testutil.ToFloat64(stat.InFlight)

	a, err := i.Reserve()
	require.NoError(t, err)
	b, err := i.Reserve()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, before+2, testutil.ToFloat64(stat.InFlight))

	i.Release(a)
	i.Release(a)
	assert.Equal(t, before+1, testutil.ToFloat64(stat.InFlight))

	i.FailAll(ErrCancelled)
	assert.Equal(t, before, testutil.ToFloat64(stat.InFlight))
}
