package packet

import (
	"bytes"
	"io"
)

// packAck writes PUBACK, PUBREC, PUBREL and PUBCOMP, which share one layout: packet identifier,
// then in v5.0 an optional reason code and property block. A v5.0 ack with code Success and no
// properties is sent in the short two byte form.
func packAck(w io.Writer, fixed *FixedHeader, id uint16, rc ReasonCode, props *Properties) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(id))
	if fixed.Version == VERSION500 && (rc.Code != CodeSuccess.Code || props != nil) {
		buf.WriteByte(rc.Code)
		if props != nil {
			if err := props.Pack(fixed.Kind, buf); err != nil {
				return err
			}
		}
	}
	return writeFrame(w, fixed, buf)
}

func unpackAck(fixed *FixedHeader, buf *bytes.Buffer) (id uint16, rc ReasonCode, props *Properties, err error) {
	if id, err = readUint16(buf); err != nil {
		return 0, rc, nil, err
	}
	rc = CodeSuccess
	if fixed.Version != VERSION500 || buf.Len() == 0 {
		return id, rc, nil, nil
	}
	code, err := readByte(buf)
	if err != nil {
		return 0, rc, nil, err
	}
	rc, _ = LookupReasonCode(VERSION500, code)
	if buf.Len() == 0 {
		return id, rc, nil, nil
	}
	if props, err = unpackProperties(fixed.Kind, buf); err != nil {
		return 0, rc, nil, err
	}
	return id, rc, props, nil
}
