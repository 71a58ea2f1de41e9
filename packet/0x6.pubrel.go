package packet

import (
	"bytes"
	"io"
)

// PUBREL answers PUBREC, second step of the QoS 2 exchange.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.6.
type PUBREL struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID   uint16      `json:"PacketID,omitempty"`
	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"` // v5.0 only
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *PUBREL) Kind() byte {
	return kindPubrel
}

func (pkt *PUBREL) packet() {}

func (pkt *PUBREL) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPubrel)
	return packAck(w, pkt.FixedHeader, pkt.PacketID, pkt.ReasonCode, pkt.Props)
}

func (pkt *PUBREL) Unpack(buf *bytes.Buffer) (err error) {
	pkt.PacketID, pkt.ReasonCode, pkt.Props, err = unpackAck(pkt.FixedHeader, buf)
	return err
}
