package mqtt

import (
	"errors"
	"fmt"

	"github.com/golang-io/go-mqtt/packet"
)

// Codec errors, re-exported so callers need only this package for errors.Is checks.
var (
	ErrInsufficientData = packet.ErrInsufficientData
	ErrCorruptData      = packet.ErrCorruptData
	ErrUnexpectedType   = packet.ErrUnexpectedType
	ErrTypeMismatch     = packet.ErrTypeMismatch
)

var (
	// ErrProtocolRejection is the parent of every refusal reported by the server.
	ErrProtocolRejection = errors.New("mqtt: protocol rejection")

	ErrUnacceptableProtocolVersion = fmt.Errorf("%w: unacceptable protocol version", ErrProtocolRejection)
	ErrIdentifierRejected          = fmt.Errorf("%w: identifier rejected", ErrProtocolRejection)
	ErrServerUnavailable           = fmt.Errorf("%w: server unavailable", ErrProtocolRejection)
	ErrBadUserNameOrPassword       = fmt.Errorf("%w: bad user name or password", ErrProtocolRejection)
	ErrNotAuthorized               = fmt.Errorf("%w: not authorized", ErrProtocolRejection)

	ErrTimeout   = errors.New("mqtt: timeout")
	ErrCancelled = errors.New("mqtt: cancelled")
	ErrState     = errors.New("mqtt: invalid state")
	ErrUnknown   = errors.New("mqtt: unknown error")
	ErrTransport = errors.New("mqtt: transport error")
)

// RejectedError is returned when the server refuses a request with a reason code.
// errors.Is matches both the rejection sentinel and the packet.ReasonCode.
type RejectedError struct {
	Err  error             // ErrProtocolRejection or one of its children
	Code packet.ReasonCode // the code on the wire
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v (%v)", e.Err, e.Code)
}

func (e *RejectedError) Unwrap() []error {
	return []error{e.Err, e.Code}
}

// TransportError wraps a failure reported by the Transport.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mqtt: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// connackError maps a CONNACK code to the session outcome. Success yields nil and the five
// refusals every protocol version defines map to their own error. Any other code, including the
// remaining v5.0 failures such as 0x89 server busy, is ErrUnexpectedType carrying the code.
func connackError(version byte, rc packet.ReasonCode) error {
	if version == packet.VERSION500 {
		switch rc.Code {
		case 0x00:
			return nil
		case packet.ErrUnsupportedProtocolVersion.Code:
			return &RejectedError{Err: ErrUnacceptableProtocolVersion, Code: rc}
		case packet.ErrClientIdentifierNotValid.Code:
			return &RejectedError{Err: ErrIdentifierRejected, Code: rc}
		case packet.ErrBadUsernameOrPassword.Code:
			return &RejectedError{Err: ErrBadUserNameOrPassword, Code: rc}
		case packet.ErrNotAuthorized.Code:
			return &RejectedError{Err: ErrNotAuthorized, Code: rc}
		case packet.ErrServerUnavailable.Code:
			return &RejectedError{Err: ErrServerUnavailable, Code: rc}
		}
		return fmt.Errorf("%w: connack reason code %w", ErrUnexpectedType, rc)
	}
	switch rc.Code {
	case 0x00:
		return nil
	case packet.Err3UnacceptableProtocolVersion.Code:
		return &RejectedError{Err: ErrUnacceptableProtocolVersion, Code: rc}
	case packet.Err3IdentifierRejected.Code:
		return &RejectedError{Err: ErrIdentifierRejected, Code: rc}
	case packet.Err3ServerUnavailable.Code:
		return &RejectedError{Err: ErrServerUnavailable, Code: rc}
	case packet.Err3BadUsernameOrPassword.Code:
		return &RejectedError{Err: ErrBadUserNameOrPassword, Code: rc}
	case packet.Err3NotAuthorized.Code:
		return &RejectedError{Err: ErrNotAuthorized, Code: rc}
	}
	return fmt.Errorf("%w: connack return code %w", ErrUnexpectedType, rc)
}
