package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	VERSION311 byte = 0x4
	VERSION500 byte = 0x5

	max1 = 0x7F      // 127
	max2 = 0x3FFF    // 16383
	max3 = 0x1FFFFF  // 2097151
	max4 = 0xFFFFFFF // 268435455

	// MaxStringLength is the largest UTF-8 string or binary field the wire format can carry.
	MaxStringLength = 0xFFFF
)

// Control packet types. Position: byte 1, bits 7-4
const (
	kindReserved    byte = 0x0
	kindConnect     byte = 0x1
	kindConnack     byte = 0x2
	kindPublish     byte = 0x3
	kindPuback      byte = 0x4
	kindPubrec      byte = 0x5
	kindPubrel      byte = 0x6
	kindPubcomp     byte = 0x7
	kindSubscribe   byte = 0x8
	kindSuback      byte = 0x9
	kindUnsubscribe byte = 0xA
	kindUnsuback    byte = 0xB
	kindPingreq     byte = 0xC
	kindPingresp    byte = 0xD
	kindDisconnect  byte = 0xE
	kindAuth        byte = 0xF
)

var Kind = map[byte]string{
	0x0: "[0x0]RESERVED",
	0x1: "[0x1]CONNECT",
	0x2: "[0x2]CONNACK",
	0x3: "[0x3]PUBLISH",
	0x4: "[0x4]PUBACK",
	0x5: "[0x5]PUBREC",
	0x6: "[0x6]PUBREL",
	0x7: "[0x7]PUBCOMP",
	0x8: "[0x8]SUBSCRIBE",
	0x9: "[0x9]SUBACK",
	0xA: "[0xA]UNSUBSCRIBE",
	0xB: "[0xB]UNSUBACK",
	0xC: "[0xC]PINGREQ",
	0xD: "[0xD]PINGRESP",
	0xE: "[0xE]DISCONNECT",
	0xF: "[0xF]AUTH", // MQTT 3.1.1: reserved, MQTT 5.0: AUTH
}

// encodeLength encodes v as a Variable Byte Integer (MQTT v5.0 section 1.5.5).
func encodeLength[T ~uint32 | ~int | ~int64](v T) ([]byte, error) {
	if v < 0 || int64(v) > max4 {
		return nil, fmt.Errorf("%w: variable byte integer %d out of range", ErrCorruptData, int64(v))
	}
	n := int64(v)
	result := make([]byte, 0, 4)
	for {
		enc := byte(n % 128)
		n /= 128
		if n > 0 { // more bytes follow
			enc |= 0x80
		}
		result = append(result, enc)
		if n == 0 {
			return result, nil
		}
	}
}

// lengthSize returns the number of bytes encodeLength produces for v.
func lengthSize(v int) int {
	switch {
	case v <= max1:
		return 1
	case v <= max2:
		return 2
	case v <= max3:
		return 3
	default:
		return 4
	}
}

// decodeVBI decodes a Variable Byte Integer from the head of b and reports how many bytes it used.
// A truncated integer is ErrInsufficientData; a fifth continuation byte is ErrCorruptData.
func decodeVBI(b []byte) (uint32, int, error) {
	var vbi uint32
	for i := 0; i < 4; i++ {
		if i >= len(b) {
			return 0, 0, ErrInsufficientData
		}
		vbi |= uint32(b[i]&0x7F) << (7 * i)
		if b[i]&0x80 == 0 {
			return vbi, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: variable byte integer exceeds 4 bytes", ErrCorruptData)
}

func decodeLength(buf *bytes.Buffer) (uint32, error) {
	v, n, err := decodeVBI(buf.Bytes())
	if err != nil {
		return 0, err
	}
	buf.Next(n)
	return v, nil
}

// s2b encodes a length-prefixed string or binary field, truncating it to MaxStringLength bytes.
// Strings are cut on a character boundary so they stay valid UTF-8.
func s2b[T string | []byte](s T) []byte {
	v := []byte(s)
	if len(v) > MaxStringLength {
		n := MaxStringLength
		if _, ok := any(s).(string); ok {
			for n > 0 && !utf8.RuneStart(v[n]) {
				n--
			}
		}
		v = v[:n]
	}
	b := make([]byte, 2, 2+len(v))
	binary.BigEndian.PutUint16(b, uint16(len(v)))
	return append(b, v...)
}

func i2b(i uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, i)
	return b
}

func i4b(i uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, i)
	return b
}

func b2i(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func readByte(buf *bytes.Buffer) (byte, error) {
	if buf.Len() < 1 {
		return 0, ErrInsufficientData
	}
	return buf.Next(1)[0], nil
}

func readUint16(buf *bytes.Buffer) (uint16, error) {
	if buf.Len() < 2 {
		return 0, ErrInsufficientData
	}
	return binary.BigEndian.Uint16(buf.Next(2)), nil
}

func readUint32(buf *bytes.Buffer) (uint32, error) {
	if buf.Len() < 4 {
		return 0, ErrInsufficientData
	}
	return binary.BigEndian.Uint32(buf.Next(4)), nil
}

// readBool decodes a one-byte boolean; any value other than 0 or 1 is malformed.
func readBool(buf *bytes.Buffer) (bool, error) {
	b, err := readByte(buf)
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("%w: boolean value %d", ErrCorruptData, b)
	}
	return b == 1, nil
}

func decodeBinary(buf *bytes.Buffer) ([]byte, error) {
	n, err := readUint16(buf)
	if err != nil {
		return nil, err
	}
	if buf.Len() < int(n) {
		return nil, ErrInsufficientData
	}
	if n == 0 {
		return nil, nil
	}
	return bytes.Clone(buf.Next(int(n))), nil
}

func decodeUTF8(buf *bytes.Buffer) (string, error) {
	b, err := decodeBinary(buf)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrCorruptData)
	}
	return string(b), nil
}
