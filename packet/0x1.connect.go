package packet

import (
	"bytes"
	"fmt"
	"io"
)

// NAME is the length-prefixed protocol name that opens every CONNECT variable header.
var NAME = []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}

// ConnectFlags is the CONNECT flags byte.
//
//	bit 7 username | bit 6 password | bit 5 will retain | bits 4-3 will QoS | bit 2 will | bit 1 clean session | bit 0 reserved
type ConnectFlags byte

func (f ConnectFlags) UserNameFlag() bool { return f&0x80 != 0 }
func (f ConnectFlags) PasswordFlag() bool { return f&0x40 != 0 }
func (f ConnectFlags) WillRetain() bool   { return f&0x20 != 0 }
func (f ConnectFlags) WillQoS() uint8     { return uint8(f>>3) & 0x3 }
func (f ConnectFlags) WillFlag() bool     { return f&0x04 != 0 }
func (f ConnectFlags) CleanSession() bool { return f&0x02 != 0 }
func (f ConnectFlags) Reserved() uint8    { return uint8(f) & 0x01 }

// Will is the message the server publishes on the client's behalf after an ungraceful disconnect.
type Will struct {
	TopicName string
	Message   []byte
	QoS       uint8
	Retain    bool
	Props     *Properties // v5.0 will properties
}

// CONNECT is the first packet a client sends after the network connection is established.
//
// Reference: MQTT v3.1.1 / v5.0 section 3.1.
type CONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	CleanSession bool   `json:"CleanSession,omitempty"` // Clean Start in v5.0
	KeepAlive    uint16 `json:"KeepAlive,omitempty"`    // seconds, 0 disables keep-alive

	Props *Properties `json:"Properties,omitempty"`

	ClientID string `json:"ClientID,omitempty"`
	Will     *Will  `json:"Will,omitempty"`
	Username string `json:"Username,omitempty"` // present when non-empty
	Password []byte `json:"Password,omitempty"` // present when non-nil
}

func (pkt *CONNECT) Kind() byte {
	return kindConnect
}

func (pkt *CONNECT) packet() {}

// Flags computes the connect flags byte from the packet fields.
func (pkt *CONNECT) Flags() ConnectFlags {
	var flag byte
	if pkt.Username != "" {
		flag |= 0x80
	}
	if pkt.Password != nil {
		flag |= 0x40
	}
	if w := pkt.Will; w != nil {
		flag |= b2i(w.Retain)<<5 | (w.QoS&0x3)<<3 | 0x04
	}
	flag |= b2i(pkt.CleanSession) << 1
	return ConnectFlags(flag)
}

func (pkt *CONNECT) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, kindConnect)
	if pkt.Version != VERSION311 && pkt.Version != VERSION500 {
		return fmt.Errorf("%w: protocol level %d", ErrCorruptData, pkt.Version)
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(NAME)
	buf.WriteByte(pkt.Version)
	buf.WriteByte(byte(pkt.Flags()))
	buf.Write(i2b(pkt.KeepAlive))
	if pkt.Version == VERSION500 {
		if err := pkt.Props.Pack(kindConnect, buf); err != nil {
			return err
		}
	}

	buf.Write(s2b(pkt.ClientID))
	if will := pkt.Will; will != nil {
		if pkt.Version == VERSION500 {
			if err := will.Props.Pack(kindWill, buf); err != nil {
				return err
			}
		}
		buf.Write(s2b(will.TopicName))
		buf.Write(s2b(will.Message))
	}
	if pkt.Username != "" {
		buf.Write(s2b(pkt.Username))
	}
	if pkt.Password != nil {
		buf.Write(s2b(pkt.Password))
	}
	return writeFrame(w, pkt.FixedHeader, buf)
}

func (pkt *CONNECT) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < len(NAME) {
		return ErrInsufficientData
	}
	if name := buf.Next(len(NAME)); !bytes.Equal(name, NAME) {
		return fmt.Errorf("%w: protocol name %q", ErrCorruptData, name)
	}
	level, err := readByte(buf)
	if err != nil {
		return err
	}
	if level != VERSION311 && level != VERSION500 {
		return fmt.Errorf("%w: protocol level %d", ErrCorruptData, level)
	}
	pkt.Version = level

	b, err := readByte(buf)
	if err != nil {
		return err
	}
	flags := ConnectFlags(b)
	if flags.Reserved() != 0 {
		return fmt.Errorf("%w: connect flags reserved bit set", ErrCorruptData)
	}
	if flags.WillQoS() > 2 {
		return fmt.Errorf("%w: will qos 3", ErrCorruptData)
	}
	if !flags.WillFlag() && (flags.WillQoS() != 0 || flags.WillRetain()) {
		return fmt.Errorf("%w: will qos/retain without will flag", ErrCorruptData)
	}
	pkt.CleanSession = flags.CleanSession()

	if pkt.KeepAlive, err = readUint16(buf); err != nil {
		return err
	}
	if pkt.Version == VERSION500 {
		if pkt.Props, err = unpackProperties(kindConnect, buf); err != nil {
			return err
		}
	}

	if pkt.ClientID, err = decodeUTF8(buf); err != nil {
		return err
	}
	if flags.WillFlag() {
		will := &Will{QoS: flags.WillQoS(), Retain: flags.WillRetain()}
		if pkt.Version == VERSION500 {
			if will.Props, err = unpackProperties(kindWill, buf); err != nil {
				return err
			}
		}
		if will.TopicName, err = decodeUTF8(buf); err != nil {
			return err
		}
		if will.Message, err = decodeBinary(buf); err != nil {
			return err
		}
		pkt.Will = will
	}
	if flags.UserNameFlag() {
		if pkt.Username, err = decodeUTF8(buf); err != nil {
			return err
		}
	}
	if flags.PasswordFlag() {
		if pkt.Password, err = decodeBinary(buf); err != nil {
			return err
		}
		if pkt.Password == nil {
			pkt.Password = []byte{}
		}
	}
	return nil
}

// header returns fixed, allocating it when nil, with the kind and the flags the kind requires.
func header(fixed *FixedHeader, kind byte) *FixedHeader {
	if fixed == nil {
		fixed = &FixedHeader{Version: VERSION311}
	}
	if fixed.Version == 0 {
		fixed.Version = VERSION311
	}
	fixed.Kind = kind
	switch kind {
	case kindPublish:
	case kindPubrel, kindSubscribe, kindUnsubscribe:
		fixed.Dup, fixed.QoS, fixed.Retain = 0, 1, 0
	default:
		fixed.Dup, fixed.QoS, fixed.Retain = 0, 0, 0
	}
	return fixed
}

// writeFrame writes the fixed header followed by the already encoded body.
func writeFrame(w io.Writer, fixed *FixedHeader, body *bytes.Buffer) error {
	if body.Len() > max4 {
		return fmt.Errorf("%w: %s remaining length %d", ErrCorruptData, Kind[fixed.Kind], body.Len())
	}
	fixed.RemainingLength = uint32(body.Len())
	if err := fixed.Pack(w); err != nil {
		return err
	}
	_, err := body.WriteTo(w)
	return err
}
