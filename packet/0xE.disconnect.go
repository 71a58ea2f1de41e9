package packet

import (
	"bytes"
	"io"
)

// DISCONNECT is the final packet of a connection. v3.1.1 sends it empty; v5.0 may carry a reason
// code and properties, and either side may send it.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.14.
type DISCONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"`
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *DISCONNECT) Kind() byte {
	return kindDisconnect
}

func (pkt *DISCONNECT) packet() {}

func (pkt *DISCONNECT) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindDisconnect)
	buf := GetBuffer()
	defer PutBuffer(buf)

	if pkt.Version == VERSION500 && (pkt.ReasonCode.Code != CodeSuccess.Code || pkt.Props != nil) {
		buf.WriteByte(pkt.ReasonCode.Code)
		if pkt.Props != nil {
			if err := pkt.Props.Pack(kindDisconnect, buf); err != nil {
				return err
			}
		}
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *DISCONNECT) Unpack(buf *bytes.Buffer) (err error) {
	pkt.ReasonCode = CodeSuccess
	if pkt.Version != VERSION500 || buf.Len() == 0 {
		return nil
	}
	code, err := readByte(buf)
	if err != nil {
		return err
	}
	pkt.ReasonCode, _ = LookupReasonCode(VERSION500, code)
	if buf.Len() == 0 {
		return nil
	}
	pkt.Props, err = unpackProperties(kindDisconnect, buf)
	return err
}
