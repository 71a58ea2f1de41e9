package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeAll(t *testing.T, pkts ...Packet) []byte {
	t.Helper()
	var stream []byte
	for _, pkt := range pkts {
		b, err := Encode(pkt)
		require.NoError(t, err)
		stream = append(stream, b...)
	}
	return stream
}

func clientBound(version byte) []Packet {
	fh := func(qos uint8) *FixedHeader { return &FixedHeader{Version: version, QoS: qos} }
	return []Packet{
		&CONNACK{FixedHeader: fh(0), ReasonCode: CodeSuccess},
		&PUBLISH{FixedHeader: fh(2), PacketID: 300, Message: &Message{TopicName: "big", Content: make([]byte, 20000)}},
		&SUBACK{FixedHeader: fh(0), PacketID: 1, ReasonCodes: []ReasonCode{CodeGrantedQos1}},
		&PUBREL{FixedHeader: fh(0), PacketID: 300, ReasonCode: CodeSuccess},
		&PINGRESP{FixedHeader: fh(0)},
		&PUBLISH{FixedHeader: fh(0), Message: &Message{TopicName: "small", Content: []byte("x")}},
		&UNSUBACK{FixedHeader: fh(0), PacketID: 2},
		&DISCONNECT{FixedHeader: fh(0), ReasonCode: CodeSuccess},
	}
}

func TestDecoderWhole(t *testing.T) {
	for _, version := range []byte{VERSION311, VERSION500} {
		want := clientBound(version)
		stream := encodeAll(t, want...)

		got, err := NewDecoder(version).Decode(stream)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecoderSplitInvariance(t *testing.T) {
	want := clientBound(VERSION500)
	stream := encodeAll(t, want...)

	// every two-way split, sampled densely around frame boundaries and sparsely inside the big payload
	for i := 0; i <= len(stream); i++ {
		if i > 200 && i < len(stream)-200 && i%97 != 0 {
			continue
		}
		d := NewDecoder(VERSION500)
		first, err := d.Decode(stream[:i])
		require.NoError(t, err)
		second, err := d.Decode(stream[i:])
		require.NoError(t, err)
		require.Equal(t, want, append(first, second...), "split at %d", i)
		require.Zero(t, d.Buffered())
	}
}

func TestDecoderByteByByte(t *testing.T) {
	want := clientBound(VERSION311)[2:]
	stream := encodeAll(t, want...)

	d := NewDecoder(VERSION311)
	var got []Packet
	for i := range stream {
		pkts, err := d.Decode(stream[i : i+1])
		require.NoError(t, err)
		got = append(got, pkts...)
	}
	assert.Equal(t, want, got)
	assert.Zero(t, d.Buffered())
}

func TestDecoderKeepsPartialHeader(t *testing.T) {
	stream := encodeAll(t, &PUBLISH{FixedHeader: &FixedHeader{Version: VERSION311}, Message: &Message{TopicName: "t", Content: make([]byte, 200)}})

	d := NewDecoder(VERSION311)
	pkts, err := d.Decode(stream[:2]) // type byte plus the first of two length bytes
	require.NoError(t, err)
	assert.Empty(t, pkts)
	assert.Equal(t, 2, d.Buffered())

	pkts, err = d.Decode(stream[2:10])
	require.NoError(t, err)
	assert.Empty(t, pkts)
	assert.Equal(t, 10, d.Buffered())

	pkts, err = d.Decode(stream[10:])
	require.NoError(t, err)
	assert.Len(t, pkts, 1)
	assert.Zero(t, d.Buffered())
}

func TestDecoderRejects(t *testing.T) {
	tests := []struct {
		name    string
		version byte
		frame   []byte
		err     error
	}{
		{"Connect", VERSION311, encodeAll(t, &CONNECT{ClientID: "c"}), ErrUnexpectedType},
		{"Subscribe", VERSION311, encodeAll(t, &SUBSCRIBE{PacketID: 1, Subscriptions: []Subscription{{TopicFilter: "a"}}}), ErrUnexpectedType},
		{"Unsubscribe", VERSION311, encodeAll(t, &UNSUBSCRIBE{PacketID: 1, TopicFilters: []string{"a"}}), ErrUnexpectedType},
		{"Pingreq", VERSION311, []byte{0xC0, 0x00}, ErrUnexpectedType},
		{"Reserved", VERSION311, []byte{0x00, 0x00}, ErrCorruptData},
		{"ReservedV5", VERSION500, []byte{0x00, 0x00}, ErrCorruptData},
		{"AuthUnderV3", VERSION311, []byte{0xF0, 0x00}, ErrCorruptData},
		{"LengthTooLong", VERSION311, []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, ErrCorruptData},
		{"MalformedBody", VERSION311, []byte{0x90, 0x03, 0x00, 0x01, 0x07}, ErrCorruptData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.version)
			_, err := d.Decode(tt.frame)
			require.ErrorIs(t, err, tt.err)

			// the decoder stays failed
			_, again := d.Decode([]byte{0xD0, 0x00})
			require.ErrorIs(t, again, tt.err)
		})
	}
}

func TestDecoderAuthUnderV5(t *testing.T) {
	pkts, err := NewDecoder(VERSION500).Decode([]byte{0xF0, 0x00})
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.IsType(t, &AUTH{}, pkts[0])
}

func TestDecoderReturnsPacketsBeforeFailure(t *testing.T) {
	stream := append([]byte{0xD0, 0x00}, 0x00, 0x00)
	pkts, err := NewDecoder(VERSION311).Decode(stream)
	require.ErrorIs(t, err, ErrCorruptData)
	require.Len(t, pkts, 1)
	assert.IsType(t, &PINGRESP{}, pkts[0])
}

func TestDecoderMaxPacketSize(t *testing.T) {
	d := NewDecoder(VERSION311)
	d.MaxPacketSize = 64

	pkts, err := d.Decode([]byte{0xD0, 0x00})
	require.NoError(t, err)
	assert.Len(t, pkts, 1)

	// rejected from the header alone, before the body arrives
	_, err = d.Decode([]byte{0x30, 0xC8, 0x01})
	require.ErrorIs(t, err, ErrCorruptData)
}
