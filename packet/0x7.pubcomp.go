package packet

import (
	"bytes"
	"io"
)

// PUBCOMP answers PUBREL and completes the QoS 2 exchange.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.7.
type PUBCOMP struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID   uint16      `json:"PacketID,omitempty"`
	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"` // v5.0 only
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *PUBCOMP) Kind() byte {
	return kindPubcomp
}

func (pkt *PUBCOMP) packet() {}

func (pkt *PUBCOMP) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPubcomp)
	return packAck(w, pkt.FixedHeader, pkt.PacketID, pkt.ReasonCode, pkt.Props)
}

func (pkt *PUBCOMP) Unpack(buf *bytes.Buffer) (err error) {
	pkt.PacketID, pkt.ReasonCode, pkt.Props, err = unpackAck(pkt.FixedHeader, buf)
	return err
}
