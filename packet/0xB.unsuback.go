package packet

import (
	"bytes"
	"io"
)

// UNSUBACK confirms an UNSUBSCRIBE. v3.1.1 carries only the packet identifier; v5.0 adds properties
// and one reason code per topic filter.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.11.
type UNSUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	Props *Properties `json:"Properties,omitempty"`

	ReasonCodes []ReasonCode `json:"ReasonCodes,omitempty"` // v5.0 only
}

func (pkt *UNSUBACK) Kind() byte {
	return kindUnsuback
}

func (pkt *UNSUBACK) packet() {}

func (pkt *UNSUBACK) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindUnsuback)
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindUnsuback, buf); err != nil {
			return err
		}
		for _, rc := range pkt.ReasonCodes {
			buf.WriteByte(rc.Code)
		}
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *UNSUBACK) Unpack(buf *bytes.Buffer) (err error) {
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return err
	}
	if pkt.Version != VERSION500 {
		return nil
	}
	if pkt.Props, err = unpackProperties(kindUnsuback, buf); err != nil {
		return err
	}
	for _, code := range buf.Next(buf.Len()) {
		rc, _ := LookupReasonCode(VERSION500, code)
		pkt.ReasonCodes = append(pkt.ReasonCodes, rc)
	}
	return nil
}
