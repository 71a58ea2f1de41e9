package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// keepAlive sends PINGREQ every interval. A ping still unanswered at the next tick ends run with
// ErrTimeout, whether or not its write ever completed.
type keepAlive struct {
	ping func() error

	mu          sync.Mutex
	outstanding bool
	sending     atomic.Bool // a PINGREQ write is in progress

	start chan time.Duration
	stop  chan struct{}
	once  sync.Once
}

func newKeepAlive(ping func() error) *keepAlive {
	return &keepAlive{ping: ping, start: make(chan time.Duration, 1), stop: make(chan struct{})}
}

// begin releases run with the ping interval. Zero disables pinging.
func (k *keepAlive) begin(interval time.Duration) {
	select {
	case k.start <- interval:
	default:
	}
}

func (k *keepAlive) run(ctx context.Context) error {
	var interval time.Duration
	select {
	case <-ctx.Done():
		return nil
	case <-k.stop:
		return nil
	case interval = <-k.start:
	}
	if interval <= 0 {
		return nil
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-k.stop:
			return nil
		case <-tick.C:
		}
		select {
		case <-k.stop:
			return nil
		default:
		}

		k.mu.Lock()
		missed := k.outstanding
		k.outstanding = true
		k.mu.Unlock()
		if missed {
			stat.KeepAliveTimeouts.Inc()
			return fmt.Errorf("%w: no PINGRESP within %s", ErrTimeout, interval)
		}
		if k.sending.CompareAndSwap(false, true) {
			go k.send()
		}
	}
}

// send writes one PINGREQ off the ticker goroutine so a stalled connection cannot hold the tick.
func (k *keepAlive) send() {
	defer k.sending.Store(false)
	if err := k.ping(); err == nil {
		stat.Pings.Inc()
	}
}

// pong records the PINGRESP for the outstanding ping.
func (k *keepAlive) pong() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.outstanding = false
}

func (k *keepAlive) halt() {
	k.once.Do(func() { close(k.stop) })
}
