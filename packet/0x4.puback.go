package packet

import (
	"bytes"
	"io"
)

// PUBACK answers a QoS 1 PUBLISH.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.4.
type PUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID   uint16      `json:"PacketID,omitempty"`
	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"` // v5.0 only
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *PUBACK) Kind() byte {
	return kindPuback
}

func (pkt *PUBACK) packet() {}

func (pkt *PUBACK) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPuback)
	return packAck(w, pkt.FixedHeader, pkt.PacketID, pkt.ReasonCode, pkt.Props)
}

func (pkt *PUBACK) Unpack(buf *bytes.Buffer) (err error) {
	pkt.PacketID, pkt.ReasonCode, pkt.Props, err = unpackAck(pkt.FixedHeader, buf)
	return err
}
