package packet

import (
	"bytes"
	"fmt"
	"io"
)

// SUBACK carries one granted QoS or failure code per topic filter of the matching SUBSCRIBE, in order.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.9.
type SUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	Props *Properties `json:"Properties,omitempty"`

	ReasonCodes []ReasonCode `json:"ReasonCodes,omitempty"`
}

func (pkt *SUBACK) Kind() byte {
	return kindSuback
}

func (pkt *SUBACK) packet() {}

func (pkt *SUBACK) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindSuback)
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindSuback, buf); err != nil {
			return err
		}
	}
	for _, rc := range pkt.ReasonCodes {
		buf.WriteByte(rc.Code)
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *SUBACK) Unpack(buf *bytes.Buffer) (err error) {
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return err
	}
	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindSuback, buf); err != nil {
			return err
		}
	}
	for _, code := range buf.Next(buf.Len()) {
		rc, ok := subackCode(pkt.Version, code)
		if !ok {
			return fmt.Errorf("%w: suback return code 0x%02X", ErrCorruptData, code)
		}
		pkt.ReasonCodes = append(pkt.ReasonCodes, rc)
	}
	if len(pkt.ReasonCodes) == 0 {
		return fmt.Errorf("%w: suback without return codes", ErrCorruptData)
	}
	return nil
}

// subackCode resolves a SUBACK code. 0x00-0x02 read as the granted QoS in both versions.
func subackCode(version, code byte) (ReasonCode, bool) {
	switch code {
	case CodeGrantedQos0.Code:
		return CodeGrantedQos0, true
	case CodeGrantedQos1.Code:
		return CodeGrantedQos1, true
	case CodeGrantedQos2.Code:
		return CodeGrantedQos2, true
	}
	rc, ok := LookupReasonCode(version, code)
	if version == VERSION500 {
		return rc, code >= 0x80
	}
	return rc, ok
}
