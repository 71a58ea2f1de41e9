package packet

import (
	"bytes"
	"fmt"
	"io"
)

// CONNACK is the server's answer to CONNECT.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.2.
type CONNACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	SessionPresent bool       `json:"SessionPresent,omitempty"` // acknowledge flags bit 0
	ReasonCode     ReasonCode `json:"ReasonCode,omitempty"`     // v3.1.1 return code / v5.0 reason code

	Props *Properties `json:"Properties,omitempty"`
}

func (pkt *CONNACK) Kind() byte {
	return kindConnack
}

func (pkt *CONNACK) packet() {}

func (pkt *CONNACK) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindConnack)
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteByte(b2i(pkt.SessionPresent))
	buf.WriteByte(pkt.ReasonCode.Code)
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindConnack, buf); err != nil {
			return err
		}
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *CONNACK) Unpack(buf *bytes.Buffer) error {
	flags, err := readByte(buf)
	if err != nil {
		return err
	}
	if flags&0xFE != 0 {
		return fmt.Errorf("%w: connack flags 0x%02X", ErrCorruptData, flags)
	}
	pkt.SessionPresent = flags == 1

	code, err := readByte(buf)
	if err != nil {
		return err
	}
	pkt.ReasonCode = connackCode(pkt.Version, code)

	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindConnack, buf); err != nil {
			return err
		}
	}
	return nil
}
