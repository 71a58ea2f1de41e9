package packet

import (
	"fmt"
)

// Decoder reassembles client-bound packets from a byte stream split at arbitrary boundaries.
//
// It keeps the unconsumed tail of the stream between calls. A truncated frame is not an error: the
// bytes stay buffered until the next chunk completes them. A malformed frame is fatal; after the
// first error every later call returns the same error.
type Decoder struct {
	// MaxPacketSize bounds header plus remaining length of an inbound packet. Zero means unlimited.
	MaxPacketSize uint32

	version byte
	buf     []byte
	err     error
}

// NewDecoder returns a Decoder for the given protocol level, VERSION311 or VERSION500.
func NewDecoder(version byte) *Decoder {
	return &Decoder{version: version}
}

// Version returns the protocol level the decoder reads.
func (d *Decoder) Version() byte {
	return d.version
}

// Buffered returns the number of bytes held back waiting for the rest of a frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Decode appends chunk to the buffered bytes and returns every packet completed by it, in stream order.
// Packets decoded before a failure are returned alongside the error.
func (d *Decoder) Decode(chunk []byte) ([]Packet, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, chunk...)

	var pkts []Packet
	off := 0
	for off < len(d.buf) {
		fixed, n, err := parseFixedHeader(d.version, d.buf[off:])
		if err == ErrInsufficientData {
			break
		}
		if err != nil {
			return pkts, d.fail(err)
		}
		if fixed.Kind == kindReserved || (fixed.Kind == kindAuth && d.version != VERSION500) {
			return pkts, d.fail(fixed.validate())
		}
		switch fixed.Kind {
		case kindConnect, kindSubscribe, kindUnsubscribe, kindPingreq:
			return pkts, d.fail(fmt.Errorf("%w: %s sent to a client", ErrUnexpectedType, Kind[fixed.Kind]))
		}
		size := uint64(n) + uint64(fixed.RemainingLength)
		if d.MaxPacketSize != 0 && size > uint64(d.MaxPacketSize) {
			return pkts, d.fail(fmt.Errorf("%w: %s of %d bytes exceeds maximum packet size %d", ErrCorruptData, Kind[fixed.Kind], size, d.MaxPacketSize))
		}
		if uint64(len(d.buf)-off) < size {
			break
		}
		pkt, err := decodeBody(fixed, d.buf[off+n:off+int(size)])
		if err != nil {
			return pkts, d.fail(err)
		}
		pkts = append(pkts, pkt)
		off += int(size)
	}
	if off > 0 {
		d.buf = append(d.buf[:0], d.buf[off:]...)
	}
	return pkts, nil
}

func (d *Decoder) fail(err error) error {
	d.err, d.buf = err, nil
	return err
}
