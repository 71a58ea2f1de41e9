package packet

import (
	"bytes"
	"fmt"
)

// Property identifiers, MQTT v5.0 section 2.2.2.2.
const (
	PropPayloadFormatIndicator          byte = 0x01
	PropMessageExpiryInterval           byte = 0x02
	PropContentType                     byte = 0x03
	PropResponseTopic                   byte = 0x08
	PropCorrelationData                 byte = 0x09
	PropSubscriptionIdentifier          byte = 0x0B
	PropSessionExpiryInterval           byte = 0x11
	PropAssignedClientIdentifier        byte = 0x12
	PropServerKeepAlive                 byte = 0x13
	PropAuthenticationMethod            byte = 0x15
	PropAuthenticationData              byte = 0x16
	PropRequestProblemInformation       byte = 0x17
	PropWillDelayInterval               byte = 0x18
	PropRequestResponseInformation      byte = 0x19
	PropResponseInformation             byte = 0x1A
	PropServerReference                 byte = 0x1C
	PropReasonString                    byte = 0x1F
	PropReceiveMaximum                  byte = 0x21
	PropTopicAliasMaximum               byte = 0x22
	PropTopicAlias                      byte = 0x23
	PropMaximumQoS                      byte = 0x24
	PropRetainAvailable                 byte = 0x25
	PropUserProperty                    byte = 0x26
	PropMaximumPacketSize               byte = 0x27
	PropWildcardSubscriptionAvailable   byte = 0x28
	PropSubscriptionIdentifierAvailable byte = 0x29
	PropSharedSubscriptionAvailable     byte = 0x2A
)

// WILL is the pseudo packet kind used for the will properties carried in the CONNECT payload.
const kindWill byte = 0x10

var reasonKinds = []byte{kindConnack, kindPuback, kindPubrec, kindPubrel, kindPubcomp, kindSuback, kindUnsuback, kindDisconnect, kindAuth}

// validProps lists the packet kinds each property may appear in.
var validProps = map[byte][]byte{
	PropPayloadFormatIndicator:          {kindPublish, kindWill},
	PropMessageExpiryInterval:           {kindPublish, kindWill},
	PropContentType:                     {kindPublish, kindWill},
	PropResponseTopic:                   {kindPublish, kindWill},
	PropCorrelationData:                 {kindPublish, kindWill},
	PropSubscriptionIdentifier:          {kindPublish, kindSubscribe},
	PropSessionExpiryInterval:           {kindConnect, kindConnack, kindDisconnect},
	PropAssignedClientIdentifier:        {kindConnack},
	PropServerKeepAlive:                 {kindConnack},
	PropAuthenticationMethod:            {kindConnect, kindConnack, kindAuth},
	PropAuthenticationData:              {kindConnect, kindConnack, kindAuth},
	PropRequestProblemInformation:       {kindConnect},
	PropWillDelayInterval:               {kindWill},
	PropRequestResponseInformation:      {kindConnect},
	PropResponseInformation:             {kindConnack},
	PropServerReference:                 {kindConnack, kindDisconnect},
	PropReasonString:                    reasonKinds,
	PropReceiveMaximum:                  {kindConnect, kindConnack},
	PropTopicAliasMaximum:               {kindConnect, kindConnack},
	PropTopicAlias:                      {kindPublish},
	PropMaximumQoS:                      {kindConnack},
	PropRetainAvailable:                 {kindConnack},
	PropUserProperty:                    {kindConnect, kindConnack, kindPublish, kindPuback, kindPubrec, kindPubrel, kindPubcomp, kindSubscribe, kindSuback, kindUnsubscribe, kindUnsuback, kindDisconnect, kindAuth, kindWill},
	PropMaximumPacketSize:               {kindConnect, kindConnack},
	PropWildcardSubscriptionAvailable:   {kindConnack},
	PropSubscriptionIdentifierAvailable: {kindConnack},
	PropSharedSubscriptionAvailable:     {kindConnack},
}

func validFor(id, kind byte) bool {
	for _, k := range validProps[id] {
		if k == kind {
			return true
		}
	}
	return false
}

// UserProperty is a name/value pair. Order and duplicates are preserved.
type UserProperty struct {
	Name  string
	Value string
}

// Properties holds the v5.0 properties of any packet. Which fields are encoded depends on the kind
// of packet carrying them. Pointer fields distinguish "absent" from a meaningful zero.
type Properties struct {
	PayloadFormatIndicator          uint8
	MessageExpiryInterval           uint32
	ContentType                     string
	ResponseTopic                   string
	CorrelationData                 []byte
	SubscriptionIdentifier          []uint32
	SessionExpiryInterval           uint32
	AssignedClientIdentifier        string
	ServerKeepAlive                 *uint16
	AuthenticationMethod            string
	AuthenticationData              []byte
	RequestProblemInformation       *uint8
	WillDelayInterval               uint32
	RequestResponseInformation      uint8
	ResponseInformation             string
	ServerReference                 string
	ReasonString                    string
	ReceiveMaximum                  uint16
	TopicAliasMaximum               uint16
	TopicAlias                      uint16
	MaximumQoS                      *uint8
	RetainAvailable                 *uint8
	UserProperties                  []UserProperty
	MaximumPacketSize               uint32
	WildcardSubscriptionAvailable   *uint8
	SubscriptionIdentifierAvailable *uint8
	SharedSubscriptionAvailable     *uint8
}

// Pack writes the property block (length prefix included) for a packet of the given kind.
// Properties that the kind cannot carry are left out. A nil receiver writes an empty block.
func (props *Properties) Pack(kind byte, w *bytes.Buffer) error {
	if props == nil {
		w.WriteByte(0)
		return nil
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	u8 := func(id, v byte) {
		if validFor(id, kind) {
			buf.WriteByte(id)
			buf.WriteByte(v)
		}
	}
	u16 := func(id byte, v uint16) {
		if validFor(id, kind) {
			buf.WriteByte(id)
			buf.Write(i2b(v))
		}
	}
	u32 := func(id byte, v uint32) {
		if validFor(id, kind) {
			buf.WriteByte(id)
			buf.Write(i4b(v))
		}
	}
	str := func(id byte, v []byte) {
		if validFor(id, kind) {
			buf.WriteByte(id)
			buf.Write(s2b(v))
		}
	}

	if props.PayloadFormatIndicator != 0 {
		u8(PropPayloadFormatIndicator, props.PayloadFormatIndicator)
	}
	if props.MessageExpiryInterval != 0 {
		u32(PropMessageExpiryInterval, props.MessageExpiryInterval)
	}
	if props.ContentType != "" {
		str(PropContentType, []byte(props.ContentType))
	}
	if props.ResponseTopic != "" {
		str(PropResponseTopic, []byte(props.ResponseTopic))
	}
	if props.CorrelationData != nil {
		str(PropCorrelationData, props.CorrelationData)
	}
	if validFor(PropSubscriptionIdentifier, kind) {
		for _, id := range props.SubscriptionIdentifier {
			vb, err := encodeLength(id)
			if err != nil {
				return err
			}
			buf.WriteByte(PropSubscriptionIdentifier)
			buf.Write(vb)
		}
	}
	if props.SessionExpiryInterval != 0 {
		u32(PropSessionExpiryInterval, props.SessionExpiryInterval)
	}
	if props.AssignedClientIdentifier != "" {
		str(PropAssignedClientIdentifier, []byte(props.AssignedClientIdentifier))
	}
	if props.ServerKeepAlive != nil {
		u16(PropServerKeepAlive, *props.ServerKeepAlive)
	}
	if props.AuthenticationMethod != "" {
		str(PropAuthenticationMethod, []byte(props.AuthenticationMethod))
	}
	if props.AuthenticationData != nil {
		str(PropAuthenticationData, props.AuthenticationData)
	}
	if props.RequestProblemInformation != nil {
		u8(PropRequestProblemInformation, *props.RequestProblemInformation)
	}
	if props.WillDelayInterval != 0 {
		u32(PropWillDelayInterval, props.WillDelayInterval)
	}
	if props.RequestResponseInformation != 0 {
		u8(PropRequestResponseInformation, props.RequestResponseInformation)
	}
	if props.ResponseInformation != "" {
		str(PropResponseInformation, []byte(props.ResponseInformation))
	}
	if props.ServerReference != "" {
		str(PropServerReference, []byte(props.ServerReference))
	}
	if props.ReasonString != "" {
		str(PropReasonString, []byte(props.ReasonString))
	}
	if props.ReceiveMaximum != 0 {
		u16(PropReceiveMaximum, props.ReceiveMaximum)
	}
	if props.TopicAliasMaximum != 0 {
		u16(PropTopicAliasMaximum, props.TopicAliasMaximum)
	}
	if props.TopicAlias != 0 {
		u16(PropTopicAlias, props.TopicAlias)
	}
	if props.MaximumQoS != nil {
		u8(PropMaximumQoS, *props.MaximumQoS)
	}
	if props.RetainAvailable != nil {
		u8(PropRetainAvailable, *props.RetainAvailable)
	}
	if validFor(PropUserProperty, kind) {
		for _, up := range props.UserProperties {
			buf.WriteByte(PropUserProperty)
			buf.Write(s2b(up.Name))
			buf.Write(s2b(up.Value))
		}
	}
	if props.MaximumPacketSize != 0 {
		u32(PropMaximumPacketSize, props.MaximumPacketSize)
	}
	if props.WildcardSubscriptionAvailable != nil {
		u8(PropWildcardSubscriptionAvailable, *props.WildcardSubscriptionAvailable)
	}
	if props.SubscriptionIdentifierAvailable != nil {
		u8(PropSubscriptionIdentifierAvailable, *props.SubscriptionIdentifierAvailable)
	}
	if props.SharedSubscriptionAvailable != nil {
		u8(PropSharedSubscriptionAvailable, *props.SharedSubscriptionAvailable)
	}

	propsLen, err := encodeLength(buf.Len())
	if err != nil {
		return err
	}
	w.Write(propsLen)
	_, err = buf.WriteTo(w)
	return err
}

// unpackProperties reads a property block for a packet of the given kind. Decoding stops exactly
// when the declared property length is used up; the outer buffer is never read past it.
// An empty block yields nil.
func unpackProperties(kind byte, buf *bytes.Buffer) (*Properties, error) {
	propsLen, err := decodeLength(buf)
	if err != nil {
		return nil, err
	}
	if propsLen == 0 {
		return nil, nil
	}
	if uint32(buf.Len()) < propsLen {
		return nil, fmt.Errorf("%w: property length %d exceeds packet", ErrCorruptData, propsLen)
	}
	block := bytes.NewBuffer(buf.Next(int(propsLen)))

	props, seen := &Properties{}, [256]bool{}
	for block.Len() > 0 {
		id, err := readByte(block)
		if err != nil {
			return nil, err
		}
		if !validFor(id, kind) {
			return nil, fmt.Errorf("%w: property 0x%02X not allowed in %s", ErrCorruptData, id, Kind[kind&0xF])
		}
		multi := id == PropUserProperty || (id == PropSubscriptionIdentifier && kind == kindPublish)
		if seen[id] && !multi {
			return nil, fmt.Errorf("%w: duplicate property 0x%02X", ErrCorruptData, id)
		}
		seen[id] = true
		if err := props.unpackOne(id, block); err != nil {
			return nil, err
		}
	}
	return props, nil
}

func (props *Properties) unpackOne(id byte, b *bytes.Buffer) (err error) {
	ptr8 := func() (*uint8, error) {
		v, err := readByte(b)
		return &v, err
	}
	switch id {
	case PropPayloadFormatIndicator:
		props.PayloadFormatIndicator, err = readByte(b)
	case PropMessageExpiryInterval:
		props.MessageExpiryInterval, err = readUint32(b)
	case PropContentType:
		props.ContentType, err = decodeUTF8(b)
	case PropResponseTopic:
		props.ResponseTopic, err = decodeUTF8(b)
	case PropCorrelationData:
		props.CorrelationData, err = decodeBinary(b)
	case PropSubscriptionIdentifier:
		var v uint32
		if v, err = decodeLength(b); err == nil {
			if v == 0 {
				return fmt.Errorf("%w: subscription identifier 0", ErrCorruptData)
			}
			props.SubscriptionIdentifier = append(props.SubscriptionIdentifier, v)
		}
	case PropSessionExpiryInterval:
		props.SessionExpiryInterval, err = readUint32(b)
	case PropAssignedClientIdentifier:
		props.AssignedClientIdentifier, err = decodeUTF8(b)
	case PropServerKeepAlive:
		var v uint16
		if v, err = readUint16(b); err == nil {
			props.ServerKeepAlive = &v
		}
	case PropAuthenticationMethod:
		props.AuthenticationMethod, err = decodeUTF8(b)
	case PropAuthenticationData:
		props.AuthenticationData, err = decodeBinary(b)
	case PropRequestProblemInformation:
		props.RequestProblemInformation, err = ptr8()
	case PropWillDelayInterval:
		props.WillDelayInterval, err = readUint32(b)
	case PropRequestResponseInformation:
		props.RequestResponseInformation, err = readByte(b)
	case PropResponseInformation:
		props.ResponseInformation, err = decodeUTF8(b)
	case PropServerReference:
		props.ServerReference, err = decodeUTF8(b)
	case PropReasonString:
		props.ReasonString, err = decodeUTF8(b)
	case PropReceiveMaximum:
		if props.ReceiveMaximum, err = readUint16(b); err == nil && props.ReceiveMaximum == 0 {
			return fmt.Errorf("%w: receive maximum 0", ErrCorruptData)
		}
	case PropTopicAliasMaximum:
		props.TopicAliasMaximum, err = readUint16(b)
	case PropTopicAlias:
		props.TopicAlias, err = readUint16(b)
	case PropMaximumQoS:
		if props.MaximumQoS, err = ptr8(); err == nil && *props.MaximumQoS > 1 {
			return fmt.Errorf("%w: maximum qos %d", ErrCorruptData, *props.MaximumQoS)
		}
	case PropRetainAvailable:
		props.RetainAvailable, err = ptr8()
	case PropUserProperty:
		var up UserProperty
		if up.Name, err = decodeUTF8(b); err != nil {
			return err
		}
		if up.Value, err = decodeUTF8(b); err != nil {
			return err
		}
		props.UserProperties = append(props.UserProperties, up)
	case PropMaximumPacketSize:
		if props.MaximumPacketSize, err = readUint32(b); err == nil && props.MaximumPacketSize == 0 {
			return fmt.Errorf("%w: maximum packet size 0", ErrCorruptData)
		}
	case PropWildcardSubscriptionAvailable:
		props.WildcardSubscriptionAvailable, err = ptr8()
	case PropSubscriptionIdentifierAvailable:
		props.SubscriptionIdentifierAvailable, err = ptr8()
	case PropSharedSubscriptionAvailable:
		props.SharedSubscriptionAvailable, err = ptr8()
	default:
		return fmt.Errorf("%w: unknown property 0x%02X", ErrCorruptData, id)
	}
	return err
}
