package mqtt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DialFunc opens the underlying byte stream of a Conn.
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Conn is a Transport over any io.ReadWriteCloser: TCP, TLS, a proxied connection, a QUIC stream or a
// WebSocket adapter.
type Conn struct {
	dial DialFunc

	// rwc is the underlying network connection, nil until the dial succeeds.
	rwc io.ReadWriteCloser
	mu  sync.Mutex // guards rwc
	wmu sync.Mutex // serializes writes

	events  chan TransportEvent
	chunks  chan []byte
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

var errNotConnected = errors.New("mqtt: transport not connected")

// NewConn returns a Conn that opens its stream with dial when started.
func NewConn(dial DialFunc) *Conn {
	return &Conn{
		dial:   dial,
		events: make(chan TransportEvent, 8),
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *Conn) Events() <-chan TransportEvent { return c.events }

func (c *Conn) Chunks() <-chan []byte { return c.chunks }

func (c *Conn) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.serve(ctx)
}

func (c *Conn) serve(ctx context.Context) {
	defer close(c.chunks)

	c.emit(TransportEvent{State: TransportConnecting})
	rwc, err := c.dial(ctx)
	if err != nil {
		c.emit(TransportEvent{State: TransportFailed, Err: err})
		return
	}
	if rwc == nil {
		c.emit(TransportEvent{State: TransportFailed, Err: errors.New("mqtt: dial returned (nil, nil)")})
		return
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		_ = rwc.Close()
		return
	default:
	}
	c.rwc = rwc
	c.mu.Unlock()
	c.emit(TransportEvent{State: TransportReady})

	go func() {
		select {
		case <-ctx.Done():
			c.Cancel()
		case <-c.done:
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := rwc.Read(buf)
		if n > 0 {
			select {
			case c.chunks <- bytes.Clone(buf[:n]):
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case <-c.done:
			default:
				c.emit(TransportEvent{State: TransportFailed, Err: err})
			}
			return
		}
	}
}

// emit never blocks: a Conn produces at most four events and the channel holds eight.
func (c *Conn) emit(ev TransportEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Conn) Send(b []byte) error {
	c.mu.Lock()
	rwc := c.rwc
	c.mu.Unlock()
	if rwc == nil {
		return errNotConnected
	}
	select {
	case <-c.done:
		return fmt.Errorf("%w: %w", errNotConnected, ErrCancelled)
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	for len(b) > 0 {
		n, err := rwc.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (c *Conn) Cancel() {
	c.once.Do(func() {
		close(c.done)
		c.emit(TransportEvent{State: TransportCancelled})
		c.mu.Lock()
		rwc := c.rwc
		c.mu.Unlock()
		if rwc != nil {
			_ = rwc.Close()
		}
	})
}
