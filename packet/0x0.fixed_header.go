package packet

import (
	"fmt"
	"io"
)

// FixedHeader is present in every MQTT control packet.
//
// MQTT v3.1.1 / v5.0 section 2.1.1:
//
//	byte 1:   packet type (bits 7-4) | flags (bits 3-0)
//	byte 2..: remaining length, Variable Byte Integer of 1-4 bytes
type FixedHeader struct {
	Version byte // protocol level the packet is encoded for, not on the wire

	Kind byte `json:"Kind,omitempty"` // the type of the packet (PUBLISH, SUBSCRIBE, etc.) from bits 7 - 4 (byte 1).

	Dup uint8 `json:"Dup,omitempty"` // indicates if the packet was already sent at an earlier time.

	QoS uint8 `json:"QoS,omitempty"` // indicates the quality of service expected.

	Retain uint8 `json:"Retain,omitempty"` // whether the message should be retained.

	RemainingLength uint32 `json:"RemainingLength,omitempty"` // the number of remaining bytes in the payload.
}

func (pkt *FixedHeader) String() string {
	return fmt.Sprintf("%s: Len=%d", Kind[pkt.Kind], pkt.RemainingLength)
}

// flags returns bits 3-0 of the first header byte.
func (pkt *FixedHeader) flags() byte {
	return pkt.Dup<<3 | pkt.QoS<<1 | pkt.Retain
}

func (pkt *FixedHeader) Pack(w io.Writer) error {
	enc, err := encodeLength(pkt.RemainingLength)
	if err != nil {
		return err
	}
	b := make([]byte, 1, 1+len(enc))
	b[0] = pkt.Kind<<4 | pkt.flags()
	b = append(b, enc...)
	_, err = w.Write(b)
	return err
}

// parseFixedHeader reads a fixed header from the head of b and returns the number of bytes it occupies.
// ErrInsufficientData means b does not yet hold the whole remaining-length field.
func parseFixedHeader(version byte, b []byte) (*FixedHeader, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrInsufficientData
	}
	pkt := &FixedHeader{
		Version: version,
		Kind:    b[0] >> 4,
		Dup:     b[0] & 0b00001000 >> 3,
		QoS:     b[0] & 0b00000110 >> 1,
		Retain:  b[0] & 0b00000001,
	}
	length, n, err := decodeVBI(b[1:])
	if err != nil {
		return nil, 0, err
	}
	pkt.RemainingLength = length
	return pkt, 1 + n, nil
}

// validate checks the packet type and its fixed flags (MQTT v5.0 section 2.1.3).
func (pkt *FixedHeader) validate() error {
	switch pkt.Kind {
	case kindReserved:
		return fmt.Errorf("%w: reserved packet type 0x0", ErrCorruptData)
	case kindAuth:
		if pkt.Version != VERSION500 {
			return fmt.Errorf("%w: reserved packet type 0xF", ErrCorruptData)
		}
	case kindPublish:
		if pkt.QoS > 2 {
			return fmt.Errorf("%w: publish qos 3", ErrCorruptData)
		}
		return nil
	case kindPubrel, kindSubscribe, kindUnsubscribe:
		if pkt.flags() != 0b0010 {
			return fmt.Errorf("%w: %s flags %04b", ErrCorruptData, Kind[pkt.Kind], pkt.flags())
		}
		return nil
	}
	if pkt.flags() != 0 {
		return fmt.Errorf("%w: %s flags %04b", ErrCorruptData, Kind[pkt.Kind], pkt.flags())
	}
	return nil
}
