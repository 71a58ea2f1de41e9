package packet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Packet is one MQTT control packet. The set of implementations is closed to this package:
// CONNECT, CONNACK, PUBLISH, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBSCRIBE, SUBACK, UNSUBSCRIBE,
// UNSUBACK, PINGREQ, PINGRESP, DISCONNECT and AUTH.
//
// Reference: MQTT v3.1.1 / v5.0 section 2.1 Structure of an MQTT Control Packet.
type Packet interface {
	// Kind returns the packet type, bits 7-4 of the first header byte.
	Kind() byte

	// Unpack decodes the variable header and payload. buf holds exactly RemainingLength bytes.
	Unpack(buf *bytes.Buffer) error

	// Pack writes the complete packet, fixed header included, computing RemainingLength.
	Pack(w io.Writer) error

	String() string

	packet()
}

// Encode returns the wire form of pkt.
func Encode(pkt Packet) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	if err := pkt.Pack(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// newPacket allocates the packet value for a validated fixed header.
func newPacket(fixed *FixedHeader) (Packet, error) {
	switch fixed.Kind {
	case kindConnect:
		return &CONNECT{FixedHeader: fixed}, nil
	case kindConnack:
		return &CONNACK{FixedHeader: fixed}, nil
	case kindPublish:
		return &PUBLISH{FixedHeader: fixed}, nil
	case kindPuback:
		return &PUBACK{FixedHeader: fixed}, nil
	case kindPubrec:
		return &PUBREC{FixedHeader: fixed}, nil
	case kindPubrel:
		return &PUBREL{FixedHeader: fixed}, nil
	case kindPubcomp:
		return &PUBCOMP{FixedHeader: fixed}, nil
	case kindSubscribe:
		return &SUBSCRIBE{FixedHeader: fixed}, nil
	case kindSuback:
		return &SUBACK{FixedHeader: fixed}, nil
	case kindUnsubscribe:
		return &UNSUBSCRIBE{FixedHeader: fixed}, nil
	case kindUnsuback:
		return &UNSUBACK{FixedHeader: fixed}, nil
	case kindPingreq:
		return &PINGREQ{FixedHeader: fixed}, nil
	case kindPingresp:
		return &PINGRESP{FixedHeader: fixed}, nil
	case kindDisconnect:
		return &DISCONNECT{FixedHeader: fixed}, nil
	case kindAuth:
		return &AUTH{FixedHeader: fixed}, nil
	}
	return nil, fmt.Errorf("%w: packet type 0x%X", ErrCorruptData, fixed.Kind)
}

// decodeBody validates the fixed header and decodes body into a packet. Any failure is ErrCorruptData:
// body is a complete frame, so running short inside it means the frame lies about its contents.
func decodeBody(fixed *FixedHeader, body []byte) (Packet, error) {
	if err := fixed.validate(); err != nil {
		return nil, err
	}
	pkt, err := newPacket(fixed)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(body)
	if err := pkt.Unpack(buf); err != nil {
		return nil, corrupt(fixed.Kind, err)
	}
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%w: %s has %d trailing bytes", ErrCorruptData, Kind[fixed.Kind], buf.Len())
	}
	return pkt, nil
}

func corrupt(kind byte, err error) error {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return fmt.Errorf("%w: %s body truncated", ErrCorruptData, Kind[kind])
	case errors.Is(err, ErrCorruptData):
		return fmt.Errorf("%s: %w", Kind[kind], err)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorruptData, Kind[kind], err)
}

// Unpack reads exactly one packet from r. It applies no role restriction, which makes it usable on
// either end of a connection; the client side reads through a Decoder instead.
func Unpack(version byte, r io.Reader) (Packet, error) {
	head := make([]byte, 1, 5)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	for {
		fixed, _, err := parseFixedHeader(version, head)
		if err == nil {
			body := make([]byte, fixed.RemainingLength)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			return decodeBody(fixed, body)
		}
		if !errors.Is(err, ErrInsufficientData) {
			return nil, err
		}
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		head = append(head, b[0])
	}
}
