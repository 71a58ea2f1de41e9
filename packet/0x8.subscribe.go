package packet

import (
	"bytes"
	"fmt"
	"io"
)

// SUBSCRIBE registers one or more topic filters with the server.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.8.
type SUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	Props *Properties `json:"Properties,omitempty"`

	Subscriptions []Subscription `json:"Subscriptions,omitempty"`
}

// Subscription is one topic filter and its subscription options.
//
//	bits 7-6 reserved | bits 5-4 retain handling | bit 3 retain as published | bit 2 no local | bits 1-0 maximum QoS
//
// v3.1.1 only carries the QoS bits.
type Subscription struct {
	TopicFilter       string
	MaximumQoS        uint8
	NoLocal           bool  // v5.0
	RetainAsPublished bool  // v5.0
	RetainHandling    uint8 // v5.0, 0-2
}

func (s Subscription) options(version byte) byte {
	opts := s.MaximumQoS & 0x3
	if version == VERSION500 {
		opts |= b2i(s.NoLocal)<<2 | b2i(s.RetainAsPublished)<<3 | (s.RetainHandling&0x3)<<4
	}
	return opts
}

func (pkt *SUBSCRIBE) Kind() byte {
	return kindSubscribe
}

func (pkt *SUBSCRIBE) packet() {}

func (pkt *SUBSCRIBE) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindSubscribe)
	if len(pkt.Subscriptions) == 0 {
		return fmt.Errorf("%w: subscribe without topic filters", ErrCorruptData)
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindSubscribe, buf); err != nil {
			return err
		}
	}
	for _, sub := range pkt.Subscriptions {
		buf.Write(s2b(sub.TopicFilter))
		buf.WriteByte(sub.options(pkt.Version))
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *SUBSCRIBE) Unpack(buf *bytes.Buffer) (err error) {
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return err
	}
	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindSubscribe, buf); err != nil {
			return err
		}
	}
	for buf.Len() > 0 {
		var sub Subscription
		if sub.TopicFilter, err = decodeUTF8(buf); err != nil {
			return err
		}
		opts, err := readByte(buf)
		if err != nil {
			return err
		}
		reserved := byte(0xFC)
		if pkt.Version == VERSION500 {
			reserved = 0xC0
		}
		if opts&reserved != 0 || opts&0x3 > 2 || (opts>>4)&0x3 > 2 {
			return fmt.Errorf("%w: subscription options 0x%02X", ErrCorruptData, opts)
		}
		sub.MaximumQoS = opts & 0x3
		sub.NoLocal = opts&0x04 != 0
		sub.RetainAsPublished = opts&0x08 != 0
		sub.RetainHandling = (opts >> 4) & 0x3
		pkt.Subscriptions = append(pkt.Subscriptions, sub)
	}
	if len(pkt.Subscriptions) == 0 {
		return fmt.Errorf("%w: subscribe without topic filters", ErrCorruptData)
	}
	return nil
}
