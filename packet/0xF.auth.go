package packet

import (
	"bytes"
	"io"
)

// AUTH carries an enhanced authentication exchange. v5.0 only; the type is reserved in v3.1.1.
//
// Reference: MQTT v5.0 section 3.15.
type AUTH struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	ReasonCode ReasonCode  `json:"ReasonCode,omitempty"`
	Props      *Properties `json:"Properties,omitempty"`
}

func (pkt *AUTH) Kind() byte {
	return kindAuth
}

func (pkt *AUTH) packet() {}

func (pkt *AUTH) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindAuth)
	pkt.Version = VERSION500
	buf := GetBuffer()
	defer PutBuffer(buf)

	if pkt.ReasonCode.Code != CodeSuccess.Code || pkt.Props != nil {
		buf.WriteByte(pkt.ReasonCode.Code)
		if err := pkt.Props.Pack(kindAuth, buf); err != nil {
			return err
		}
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *AUTH) Unpack(buf *bytes.Buffer) (err error) {
	pkt.ReasonCode = CodeSuccess
	if buf.Len() == 0 {
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
	pkt.Props, err = unpackProperties(kindAuth, buf)
	return err
}
