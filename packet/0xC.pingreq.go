package packet

import (
	"bytes"
	"io"
)

// PINGREQ is sent by the client to keep the connection alive. It has no variable header or payload.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.12.
type PINGREQ struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *PINGREQ) Kind() byte {
	return kindPingreq
}

func (pkt *PINGREQ) packet() {}

func (pkt *PINGREQ) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPingreq)
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PINGREQ) Unpack(_ *bytes.Buffer) error {
	return nil
}
