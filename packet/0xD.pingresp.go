package packet

import (
	"bytes"
	"io"
)

type PINGRESP struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *PINGRESP) Kind() byte {
	return kindPingresp
}

func (pkt *PINGRESP) packet() {}

func (pkt *PINGRESP) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindPingresp)
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PINGRESP) Unpack(_ *bytes.Buffer) error {
	return nil
}
