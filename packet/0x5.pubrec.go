package packet

import (
	"bytes"
	"io"
)

// PUBREC answers a QoS 2 PUBLISH, first step of the exchange.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.5.
type PUBREC struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID   uint16      `json:"PacketID,omitempty"`
	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"` // v5.0 only
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *PUBREC) Kind() byte {
	return kindPubrec
}

func (pkt *PUBREC) packet() {}

func (pkt *PUBREC) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPubrec)
	return packAck(w, pkt.FixedHeader, pkt.PacketID, pkt.ReasonCode, pkt.Props)
}

func (pkt *PUBREC) Unpack(buf *bytes.Buffer) (err error) {
	pkt.PacketID, pkt.ReasonCode, pkt.Props, err = unpackAck(pkt.FixedHeader, buf)
	return err
}
