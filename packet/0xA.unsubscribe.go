package packet

import (
	"bytes"
	"fmt"
	"io"
)

// UNSUBSCRIBE removes topic filters.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.10.
type UNSUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	Props *Properties `json:"Properties,omitempty"`

	TopicFilters []string `json:"TopicFilters,omitempty"`
}

func (pkt *UNSUBSCRIBE) Kind() byte {
	return kindUnsubscribe
}

func (pkt *UNSUBSCRIBE) packet() {}

func (pkt *UNSUBSCRIBE) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindUnsubscribe)
	if len(pkt.TopicFilters) == 0 {
		return fmt.Errorf("%w: unsubscribe without topic filters", ErrCorruptData)
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindUnsubscribe, buf); err != nil {
			return err
		}
	}
	for _, filter := range pkt.TopicFilters {
		buf.Write(s2b(filter))
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *UNSUBSCRIBE) Unpack(buf *bytes.Buffer) (err error) {
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return err
	}
	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindUnsubscribe, buf); err != nil {
			return err
		}
	}
	for buf.Len() > 0 {
		filter, err := decodeUTF8(buf)
		if err != nil {
			return err
		}
		pkt.TopicFilters = append(pkt.TopicFilters, filter)
	}
	if len(pkt.TopicFilters) == 0 {
		return fmt.Errorf("%w: unsubscribe without topic filters", ErrCorruptData)
	}
	return nil
}
