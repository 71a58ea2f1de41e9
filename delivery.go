package mqtt

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/golang-io/go-mqtt/packet"
)

// delivery hands inbound messages to the application on its own goroutine, in arrival order.
// The queue is unbounded so the read loop never waits on a slow handler.
type delivery struct {
	mu      sync.Mutex
	q       *queue.Queue
	closed  bool
	handler func(*packet.Message)
	signal  chan struct{}
}

func newDelivery() *delivery {
	return &delivery{q: queue.New(), signal: make(chan struct{}, 1)}
}

func (d *delivery) setHandler(fn func(*packet.Message)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = fn
}

func (d *delivery) push(msg *packet.Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.q.Add(msg)
	d.mu.Unlock()
	d.notify()
}

// close stops the run loop once the messages already queued are delivered.
func (d *delivery) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.notify()
}

func (d *delivery) notify() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *delivery) pop() (*packet.Message, func(*packet.Message), bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q.Length() == 0 {
		return nil, nil, false, d.closed
	}
	return d.q.Remove().(*packet.Message), d.handler, true, d.closed
}

// run hands queued messages to the handler until the queue is closed and empty.
func (d *delivery) run() {
	for {
		msg, handler, ok, closed := d.pop()
		if ok {
			if handler != nil {
				handler(msg)
			}
			continue
		}
		if closed {
			return
		}
		<-d.signal
	}
}

// Len returns the number of messages waiting for the handler.
func (d *delivery) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}
