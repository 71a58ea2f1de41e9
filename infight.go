package mqtt

import (
	"fmt"
	"sync"

	"github.com/golang-io/go-mqtt/packet"
)

type pendingKey struct {
	kind byte
	id   uint16
}

// InFight correlates outbound requests with the replies that complete them. Each entry is keyed by
// the kind of the awaited reply and its packet identifier (0 for CONNACK) and fires at most once.
// It also owns the identifiers reserved by handshakes still in progress.
type InFight struct {
	mu   sync.Mutex
	ids  PacketID
	used map[uint16]struct{}
	maps map[pendingKey]func(packet.Packet, error)
	err  error // set by FailAll, refuses further entries
}

func newInFight() *InFight {
	return &InFight{
		used: make(map[uint16]struct{}),
		maps: make(map[pendingKey]func(packet.Packet, error)),
	}
}

// Reserve allocates an identifier that no handshake is using.
func (i *InFight) Reserve() (uint16, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return 0, i.err
	}
	id, err := i.ids.Next(func(id uint16) bool {
		_, ok := i.used[id]
		return ok
	})
	if err != nil {
		return 0, err
	}
	i.used[id] = struct{}{}
	stat.InFlight.Inc()
	return id, nil
}

// Release returns id to the allocator.
func (i *InFight) Release(id uint16) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.used[id]; ok {
		delete(i.used, id)
		stat.InFlight.Dec()
	}
}

// Put registers fn to be called with the reply of the given kind and identifier.
func (i *InFight) Put(kind byte, id uint16, fn func(packet.Packet, error)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	key := pendingKey{kind: kind, id: id}
	if _, ok := i.maps[key]; ok {
		return fmt.Errorf("%w: %s %d already awaited", ErrState, packet.Kind[kind], id)
	}
	i.maps[key] = fn
	return nil
}

// Resolve completes the entry matching pkt, if any. fn runs outside the lock.
func (i *InFight) Resolve(pkt packet.Packet, id uint16) bool {
	key := pendingKey{kind: pkt.Kind(), id: id}
	i.mu.Lock()
	fn, ok := i.maps[key]
	delete(i.maps, key)
	i.mu.Unlock()
	if ok {
		fn(pkt, nil)
	}
	return ok
}

// Cancel drops an entry without completing it.
func (i *InFight) Cancel(kind byte, id uint16) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.maps, pendingKey{kind: kind, id: id})
}

// FailAll completes every entry with err and refuses new ones.
func (i *InFight) FailAll(err error) {
	i.mu.Lock()
	if i.err != nil {
		i.mu.Unlock()
		return
	}
	i.err = err
	fns := make([]func(packet.Packet, error), 0, len(i.maps))
	for key, fn := range i.maps {
		fns = append(fns, fn)
		delete(i.maps, key)
	}
	stat.InFlight.Sub(float64(len(i.used)))
	clear(i.used)
	i.mu.Unlock()

	for _, fn := range fns {
		fn(nil, err)
	}
}

// Len returns the number of outstanding entries.
func (i *InFight) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.maps)
}
