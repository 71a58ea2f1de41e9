package packet

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// PUBLISH transports an application message in either direction.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.3. Dup, QoS and Retain live in the fixed header flags.
type PUBLISH struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"` // present on the wire iff QoS > 0

	Message *Message `json:"Message,omitempty"`

	Props *Properties `json:"Properties,omitempty"`
}

func (pkt *PUBLISH) Kind() byte {
	return kindPublish
}

func (pkt *PUBLISH) packet() {}

func (pkt *PUBLISH) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPublish)
	if pkt.QoS > 2 {
		return fmt.Errorf("%w: publish qos %d", ErrCorruptData, pkt.QoS)
	}
	if pkt.QoS > 0 && pkt.PacketID == 0 {
		return fmt.Errorf("%w: qos %d publish without packet identifier", ErrCorruptData, pkt.QoS)
	}
	if pkt.Message == nil {
		pkt.Message = &Message{}
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(s2b(pkt.Message.TopicName))
	if pkt.QoS != 0 {
		buf.Write(i2b(pkt.PacketID))
	}
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindPublish, buf); err != nil {
			return err
		}
	}
	buf.Write(pkt.Message.Content)
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *PUBLISH) Unpack(buf *bytes.Buffer) (err error) {
	pkt.Message = &Message{}
	if pkt.Message.TopicName, err = decodeUTF8(buf); err != nil {
		return err
	}
	if strings.ContainsAny(pkt.Message.TopicName, "+#") {
		return fmt.Errorf("%w: wildcard in topic name %q", ErrCorruptData, pkt.Message.TopicName)
	}
	if pkt.QoS != 0 {
		if pkt.PacketID, err = readUint16(buf); err != nil {
			return err
		}
		if pkt.PacketID == 0 {
			return fmt.Errorf("%w: qos %d publish with packet identifier 0", ErrCorruptData, pkt.QoS)
		}
	}
	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindPublish, buf); err != nil {
			return err
		}
	}
	if pkt.Message.TopicName == "" && (pkt.Props == nil || pkt.Props.TopicAlias == 0) {
		return fmt.Errorf("%w: empty topic name", ErrCorruptData)
	}
	if buf.Len() > 0 {
		pkt.Message.Content = bytes.Clone(buf.Next(buf.Len()))
	}
	return nil
}

// Message is the application part of a PUBLISH.
type Message struct {
	TopicName string
	Content   []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("%s # %s", m.TopicName, m.Content)
}
