package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publishV5 frames a v5 QoS 0 PUBLISH on topic "t" whose body continues with rest.
func publishV5(rest ...byte) []byte {
	body := append([]byte{0x00, 0x01, 't'}, rest...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestPropertiesBoundedByLength(t *testing.T) {
	t.Run("EmptyBlockLeavesPayload", func(t *testing.T) {
		pkt, err := Unpack(VERSION500, bytes.NewReader(publishV5(0x00, 0x26, 0x00, 0x01, 'a')))
		require.NoError(t, err)
		pub := pkt.(*PUBLISH)
		assert.Nil(t, pub.Props)
		assert.Equal(t, []byte{0x26, 0x00, 0x01, 'a'}, pub.Message.Content)
	})

	t.Run("ValueCrossesBlockEnd", func(t *testing.T) {
		_, err := Unpack(VERSION500, bytes.NewReader(publishV5(0x02, 0x02, 0x00, 0x00, 0x00, 0x3C)))
		require.ErrorIs(t, err, ErrCorruptData)
	})

	t.Run("LengthExceedsPacket", func(t *testing.T) {
		_, err := Unpack(VERSION500, bytes.NewReader(publishV5(0x05, 0x01, 0x01)))
		require.ErrorIs(t, err, ErrCorruptData)
	})

	t.Run("PayloadAfterBlock", func(t *testing.T) {
		pkt, err := Unpack(VERSION500, bytes.NewReader(publishV5(0x02, 0x01, 0x01, 'h', 'i')))
		require.NoError(t, err)
		pub := pkt.(*PUBLISH)
		assert.Equal(t, uint8(1), pub.Props.PayloadFormatIndicator)
		assert.Equal(t, []byte("hi"), pub.Message.Content)
	})
}

func TestPropertiesRejected(t *testing.T) {
	tests := []struct {
		name  string
		block []byte
	}{
		{"Duplicate", []byte{0x0A, 0x02, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x02}},
		{"NotAllowedInPublish", []byte{0x03, 0x21, 0x00, 0x0A}},
		{"Unknown", []byte{0x02, 0x7F, 0x00}},
		{"ZeroSubscriptionIdentifier", []byte{0x02, 0x0B, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(VERSION500, bytes.NewReader(publishV5(tt.block...)))
			require.ErrorIs(t, err, ErrCorruptData)
		})
	}
}

func TestPropertiesRepeatable(t *testing.T) {
	block := []byte{0x0A,
		0x0B, 0x01,
		0x0B, 0x02,
		0x26, 0x00, 0x01, 'k', 0x00, 0x00,
	}
	pkt, err := Unpack(VERSION500, bytes.NewReader(publishV5(block...)))
	require.NoError(t, err)
	props := pkt.(*PUBLISH).Props
	assert.Equal(t, []uint32{1, 2}, props.SubscriptionIdentifier)
	assert.Equal(t, []UserProperty{{Name: "k"}}, props.UserProperties)
}

func TestPropertiesPackSkipsForeignProperties(t *testing.T) {
	b, err := Encode(&PUBACK{
		FixedHeader: &FixedHeader{Version: VERSION500},
		PacketID:    1,
		ReasonCode:  CodeSuccess,
		Props:       &Properties{TopicAlias: 3, ReasonString: "r"},
	})
	require.NoError(t, err)

	pkt, err := Unpack(VERSION500, bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, &Properties{ReasonString: "r"}, pkt.(*PUBACK).Props)
}

func TestWillProperties(t *testing.T) {
	b, err := Encode(&CONNECT{
		FixedHeader: &FixedHeader{Version: VERSION500},
		ClientID:    "c",
		Will:        &Will{TopicName: "w", Message: []byte("m"), Props: &Properties{WillDelayInterval: 9, SessionExpiryInterval: 5}},
	})
	require.NoError(t, err)

	pkt, err := Unpack(VERSION500, bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, &Properties{WillDelayInterval: 9}, pkt.(*CONNECT).Will.Props)
}
