package mqtt

import (
	"context"
	"fmt"
)

// TransportState is the connection state reported by a Transport.
type TransportState int

const (
	TransportConnecting TransportState = iota
	TransportWaiting                   // a recoverable problem, the transport keeps trying
	TransportReady
	TransportFailed
	TransportCancelled
)

var transportStateNames = map[TransportState]string{
	TransportConnecting: "connecting",
	TransportWaiting:    "waiting",
	TransportReady:      "ready",
	TransportFailed:     "failed",
	TransportCancelled:  "cancelled",
}

func (s TransportState) String() string {
	if name, ok := transportStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TransportState(%d)", int(s))
}

// TransportEvent is one state transition. Err is set for Waiting and Failed.
type TransportEvent struct {
	State TransportState
	Err   error
}

// Transport is the byte stream a Session runs over. The session owns it once handed to NewSession.
type Transport interface {
	// Start opens the connection in the background and reports progress on Events.
	// ctx bounds the lifetime of the connection.
	Start(ctx context.Context)

	// Events delivers state transitions in order.
	Events() <-chan TransportEvent

	// Chunks delivers inbound bytes in order. It is closed when the stream ends.
	Chunks() <-chan []byte

	// Send writes b completely and returns when it has been handed to the connection.
	Send(b []byte) error

	// Cancel closes the connection. It is safe to call more than once.
	Cancel()
}
