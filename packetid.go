package mqtt

import "fmt"

// PacketID allocates packet identifiers. The zero value hands out 1 first; after 65535 it wraps to 1,
// never 0.
type PacketID uint16

// Next returns the next identifier for which inUse reports false. inUse may be nil.
func (p *PacketID) Next(inUse func(uint16) bool) (uint16, error) {
	for range 0xFFFF {
		*p++
		if *p == 0 {
			*p = 1
		}
		if inUse == nil || !inUse(uint16(*p)) {
			return uint16(*p), nil
		}
	}
	return 0, fmt.Errorf("%w: all packet identifiers in flight", ErrState)
}
