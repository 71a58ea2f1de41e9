package packet

import (
	"bytes"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Paho's v3.1.1 codec is used as an independent reference for the wire format.

func TestInteropEncodeReadByPaho(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		b, err := Encode(&CONNECT{
			FixedHeader:  &FixedHeader{Version: VERSION311},
			CleanSession: true,
			KeepAlive:    45,
			ClientID:     "interop",
			Will:         &Will{TopicName: "lwt", Message: []byte("gone"), QoS: 1, Retain: true},
			Username:     "u",
			Password:     []byte("p"),
		})
		require.NoError(t, err)

		cp, err := packets.ReadPacket(bytes.NewReader(b))
		require.NoError(t, err)
		c := cp.(*packets.ConnectPacket)
		assert.Equal(t, "MQTT", c.ProtocolName)
		assert.Equal(t, byte(4), c.ProtocolVersion)
		assert.True(t, c.CleanSession)
		assert.Equal(t, uint16(45), c.Keepalive)
		assert.Equal(t, "interop", c.ClientIdentifier)
		assert.True(t, c.WillFlag)
		assert.Equal(t, byte(1), c.WillQos)
		assert.True(t, c.WillRetain)
		assert.Equal(t, "lwt", c.WillTopic)
		assert.Equal(t, []byte("gone"), c.WillMessage)
		assert.Equal(t, "u", c.Username)
		assert.Equal(t, []byte("p"), c.Password)
	})

	t.Run("Publish", func(t *testing.T) {
		b, err := Encode(&PUBLISH{
			FixedHeader: &FixedHeader{Version: VERSION311, QoS: 2, Dup: 1},
			PacketID:    4242,
			Message:     &Message{TopicName: "a/b", Content: bytes.Repeat([]byte("z"), 1000)},
		})
		require.NoError(t, err)

		cp, err := packets.ReadPacket(bytes.NewReader(b))
		require.NoError(t, err)
		p := cp.(*packets.PublishPacket)
		assert.Equal(t, byte(2), p.Qos)
		assert.True(t, p.Dup)
		assert.Equal(t, uint16(4242), p.MessageID)
		assert.Equal(t, "a/b", p.TopicName)
		assert.Len(t, p.Payload, 1000)
	})

	t.Run("Subscribe", func(t *testing.T) {
		b, err := Encode(&SUBSCRIBE{
			PacketID:      9,
			Subscriptions: []Subscription{{TopicFilter: "x/#", MaximumQoS: 1}, {TopicFilter: "y", MaximumQoS: 2}},
		})
		require.NoError(t, err)

		cp, err := packets.ReadPacket(bytes.NewReader(b))
		require.NoError(t, err)
		s := cp.(*packets.SubscribePacket)
		assert.Equal(t, uint16(9), s.MessageID)
		assert.Equal(t, []string{"x/#", "y"}, s.Topics)
		assert.Equal(t, []byte{1, 2}, s.Qoss)
	})

	t.Run("Pubrel", func(t *testing.T) {
		b, err := Encode(&PUBREL{PacketID: 77})
		require.NoError(t, err)

		cp, err := packets.ReadPacket(bytes.NewReader(b))
		require.NoError(t, err)
		assert.Equal(t, uint16(77), cp.(*packets.PubrelPacket).MessageID)
	})
}

func TestInteropPahoReadByDecoder(t *testing.T) {
	connack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
	connack.SessionPresent = true
	connack.ReturnCode = packets.ErrRefusedNotAuthorised

	publish := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
	publish.Qos = 1
	publish.MessageID = 12
	publish.TopicName = "sensors/1"
	publish.Payload = []byte("21.5")

	suback := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
	suback.MessageID = 3
	suback.ReturnCodes = []byte{0x00, 0x02, 0x80}

	pubrel := packets.NewControlPacket(packets.Pubrel).(*packets.PubrelPacket)
	pubrel.MessageID = 12

	var stream bytes.Buffer
	for _, cp := range []packets.ControlPacket{connack, publish, suback, pubrel, packets.NewControlPacket(packets.Pingresp)} {
		require.NoError(t, cp.Write(&stream))
	}

	pkts, err := NewDecoder(VERSION311).Decode(stream.Bytes())
	require.NoError(t, err)
	require.Len(t, pkts, 5)

	ca := pkts[0].(*CONNACK)
	assert.True(t, ca.SessionPresent)
	assert.Equal(t, Err3NotAuthorized, ca.ReasonCode)

	pub := pkts[1].(*PUBLISH)
	assert.Equal(t, uint8(1), pub.QoS)
	assert.Equal(t, uint16(12), pub.PacketID)
	assert.Equal(t, &Message{TopicName: "sensors/1", Content: []byte("21.5")}, pub.Message)

	sa := pkts[2].(*SUBACK)
	assert.Equal(t, []ReasonCode{CodeGrantedQos0, CodeGrantedQos2, ErrSubscribeFailure}, sa.ReasonCodes)

	assert.Equal(t, uint16(12), pkts[3].(*PUBREL).PacketID)
	assert.IsType(t, &PINGRESP{}, pkts[4])
}
