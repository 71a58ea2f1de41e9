package packet

import (
	"errors"
	"fmt"
)

// Codec errors. ErrInsufficientData is never fatal: it means "try again after the next read".
var (
	ErrInsufficientData = errors.New("mqtt: insufficient data")
	ErrCorruptData      = errors.New("mqtt: corrupt data")
	ErrUnexpectedType   = errors.New("mqtt: unexpected packet type")
	ErrTypeMismatch     = errors.New("mqtt: packet type mismatch")
)

// ReasonCode is a MQTT return code (v3.1.1) or reason code (v5.0).
// Reference: MQTT v3.1.1 section 3.2.2.3, MQTT v5.0 section 2.4.
type ReasonCode struct {
	Code   uint8  // wire value
	Reason string // human readable description
}

// Error implements the error interface.
func (rc ReasonCode) Error() string {
	return fmt.Sprintf("%d:%s", rc.Code, rc.Reason)
}

// Failed reports whether the code signals failure. Every v5.0 code from 0x80 up is a failure,
// as is the v3.1.1 SUBACK failure return code 0x80.
func (rc ReasonCode) Failed() bool {
	return rc.Code >= 0x80
}

var (
	// MQTT v3.1.1 CONNACK return codes.
	Err3UnacceptableProtocolVersion = ReasonCode{Code: 0x01, Reason: "unacceptable protocol version"}
	Err3IdentifierRejected          = ReasonCode{Code: 0x02, Reason: "identifier rejected"}
	Err3ServerUnavailable           = ReasonCode{Code: 0x03, Reason: "server unavailable"}
	Err3BadUsernameOrPassword       = ReasonCode{Code: 0x04, Reason: "bad user name or password"}
	Err3NotAuthorized               = ReasonCode{Code: 0x05, Reason: "not authorized"}

	CodeSuccess                = ReasonCode{Code: 0x00, Reason: "success"}
	CodeGrantedQos0            = ReasonCode{Code: 0x00, Reason: "granted qos 0"}
	CodeGrantedQos1            = ReasonCode{Code: 0x01, Reason: "granted qos 1"}
	CodeGrantedQos2            = ReasonCode{Code: 0x02, Reason: "granted qos 2"}
	CodeDisconnectWillMessage  = ReasonCode{Code: 0x04, Reason: "disconnect with will message"}
	CodeNoMatchingSubscribers  = ReasonCode{Code: 0x10, Reason: "no matching subscribers"}
	CodeNoSubscriptionExisted  = ReasonCode{Code: 0x11, Reason: "no subscription existed"}
	CodeContinueAuthentication = ReasonCode{Code: 0x18, Reason: "continue authentication"}
	CodeReAuthenticate         = ReasonCode{Code: 0x19, Reason: "re-authenticate"}

	// v3.1.1 SUBACK failure, shares its value with the v5.0 unspecified error.
	ErrSubscribeFailure = ReasonCode{Code: 0x80, Reason: "failure"}

	ErrUnspecifiedError                 = ReasonCode{Code: 0x80, Reason: "unspecified error"}
	ErrMalformedPacket                  = ReasonCode{Code: 0x81, Reason: "malformed packet"}
	ErrProtocolErr                      = ReasonCode{Code: 0x82, Reason: "protocol error"}
	ErrImplementationSpecificError      = ReasonCode{Code: 0x83, Reason: "implementation specific error"}
	ErrUnsupportedProtocolVersion       = ReasonCode{Code: 0x84, Reason: "unsupported protocol version"}
	ErrClientIdentifierNotValid         = ReasonCode{Code: 0x85, Reason: "client identifier not valid"}
	ErrBadUsernameOrPassword            = ReasonCode{Code: 0x86, Reason: "bad user name or password"}
	ErrNotAuthorized                    = ReasonCode{Code: 0x87, Reason: "not authorized"}
	ErrServerUnavailable                = ReasonCode{Code: 0x88, Reason: "server unavailable"}
	ErrServerBusy                       = ReasonCode{Code: 0x89, Reason: "server busy"}
	ErrBanned                           = ReasonCode{Code: 0x8A, Reason: "banned"}
	ErrServerShuttingDown               = ReasonCode{Code: 0x8B, Reason: "server shutting down"}
	ErrBadAuthenticationMethod          = ReasonCode{Code: 0x8C, Reason: "bad authentication method"}
	ErrKeepAliveTimeout                 = ReasonCode{Code: 0x8D, Reason: "keep alive timeout"}
	ErrSessionTakenOver                 = ReasonCode{Code: 0x8E, Reason: "session taken over"}
	ErrTopicFilterInvalid               = ReasonCode{Code: 0x8F, Reason: "topic filter invalid"}
	ErrTopicNameInvalid                 = ReasonCode{Code: 0x90, Reason: "topic name invalid"}
	ErrPacketIdentifierInUse            = ReasonCode{Code: 0x91, Reason: "packet identifier in use"}
	ErrPacketIdentifierNotFound         = ReasonCode{Code: 0x92, Reason: "packet identifier not found"}
	ErrReceiveMaximum                   = ReasonCode{Code: 0x93, Reason: "receive maximum exceeded"}
	ErrTopicAliasInvalid                = ReasonCode{Code: 0x94, Reason: "topic alias invalid"}
	ErrPacketTooLarge                   = ReasonCode{Code: 0x95, Reason: "packet too large"}
	ErrMessageRateTooHigh               = ReasonCode{Code: 0x96, Reason: "message rate too high"}
	ErrQuotaExceeded                    = ReasonCode{Code: 0x97, Reason: "quota exceeded"}
	ErrAdministrativeAction             = ReasonCode{Code: 0x98, Reason: "administrative action"}
	ErrPayloadFormatInvalid             = ReasonCode{Code: 0x99, Reason: "payload format invalid"}
	ErrRetainNotSupported               = ReasonCode{Code: 0x9A, Reason: "retain not supported"}
	ErrQosNotSupported                  = ReasonCode{Code: 0x9B, Reason: "qos not supported"}
	ErrUseAnotherServer                 = ReasonCode{Code: 0x9C, Reason: "use another server"}
	ErrServerMoved                      = ReasonCode{Code: 0x9D, Reason: "server moved"}
	ErrSharedSubscriptionNotSupported   = ReasonCode{Code: 0x9E, Reason: "shared subscriptions not supported"}
	ErrConnectionRateExceeded           = ReasonCode{Code: 0x9F, Reason: "connection rate exceeded"}
	ErrMaxConnectTime                   = ReasonCode{Code: 0xA0, Reason: "maximum connect time"}
	ErrSubscriptionIDNotSupported       = ReasonCode{Code: 0xA1, Reason: "subscription identifiers not supported"}
	ErrWildcardSubscriptionNotSupported = ReasonCode{Code: 0xA2, Reason: "wildcard subscriptions not supported"}
)

var v5Codes = func() map[uint8]ReasonCode {
	m := make(map[uint8]ReasonCode)
	for _, rc := range []ReasonCode{
		CodeSuccess, CodeGrantedQos1, CodeGrantedQos2, CodeDisconnectWillMessage,
		CodeNoMatchingSubscribers, CodeNoSubscriptionExisted, CodeContinueAuthentication, CodeReAuthenticate,
		ErrUnspecifiedError, ErrMalformedPacket, ErrProtocolErr, ErrImplementationSpecificError,
		ErrUnsupportedProtocolVersion, ErrClientIdentifierNotValid, ErrBadUsernameOrPassword, ErrNotAuthorized,
		ErrServerUnavailable, ErrServerBusy, ErrBanned, ErrServerShuttingDown, ErrBadAuthenticationMethod,
		ErrKeepAliveTimeout, ErrSessionTakenOver, ErrTopicFilterInvalid, ErrTopicNameInvalid,
		ErrPacketIdentifierInUse, ErrPacketIdentifierNotFound, ErrReceiveMaximum, ErrTopicAliasInvalid,
		ErrPacketTooLarge, ErrMessageRateTooHigh, ErrQuotaExceeded, ErrAdministrativeAction,
		ErrPayloadFormatInvalid, ErrRetainNotSupported, ErrQosNotSupported, ErrUseAnotherServer,
		ErrServerMoved, ErrSharedSubscriptionNotSupported, ErrConnectionRateExceeded, ErrMaxConnectTime,
		ErrSubscriptionIDNotSupported, ErrWildcardSubscriptionNotSupported,
	} {
		m[rc.Code] = rc
	}
	return m
}()

var v3ConnackCodes = map[uint8]ReasonCode{
	0x00: CodeSuccess,
	0x01: Err3UnacceptableProtocolVersion,
	0x02: Err3IdentifierRejected,
	0x03: Err3ServerUnavailable,
	0x04: Err3BadUsernameOrPassword,
	0x05: Err3NotAuthorized,
}

// LookupReasonCode returns the named reason code for a wire value. Unknown values come back with
// an empty Reason and ok == false.
func LookupReasonCode(version, code uint8) (ReasonCode, bool) {
	if version == VERSION500 {
		rc, ok := v5Codes[code]
		if !ok {
			return ReasonCode{Code: code}, false
		}
		return rc, true
	}
	switch code {
	case 0x00, 0x01, 0x02:
		return ReasonCode{Code: code, Reason: fmt.Sprintf("granted qos %d", code)}, true
	case 0x80:
		return ErrSubscribeFailure, true
	}
	return ReasonCode{Code: code}, false
}

// connackCode resolves a CONNACK return/reason code for the given protocol version.
func connackCode(version, code uint8) ReasonCode {
	if version == VERSION500 {
		rc, _ := LookupReasonCode(version, code)
		return rc
	}
	if rc, ok := v3ConnackCodes[code]; ok {
		return rc
	}
	return ReasonCode{Code: code, Reason: "reserved"}
}
