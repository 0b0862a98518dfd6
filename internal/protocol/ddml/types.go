// Package ddml implements the binary codec shared by all frame kinds.
// One command vocabulary drives three context flavors: sizing, wrapping
// into an output buffer, and unwrapping from an input buffer. Wrap and
// unwrap feed a sponge authenticator with identical transcripts so that
// squeezed tags agree between producer and consumer.
package ddml

import (
	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

type (
	// Uint8 is a one octet field.
	Uint8 uint8

	// Uint64 is an eight octet big-endian field.
	Uint64 uint64

	// Size is a variable width non-negative integer field. On the wire it
	// is one length byte d followed by the d significant bytes of the
	// value, big-endian. Zero encodes as the single byte 0x00.
	Size int

	// Bytes is a variable length field, prefixed with its length as a Size.
	Bytes []byte

	// NBytes is a fixed width field; the width is the slice length.
	NBytes []byte

	// Mac is a squeezed authentication tag of the given width in bytes.
	Mac int
)

// Sizeof returns the wire width of the Size field itself.
func (s Size) Sizeof() int {
	return sizeBytes(int(s)) + 1
}

// ExternalAbsorber is a value fed to the authenticator without being
// emitted on the wire. Links implement it so that headers bind to their
// transport address without spending wire bytes on it.
type ExternalAbsorber interface {
	AbsorbInto(sp *spongos.Spongos)
}

// sizeBytes returns the minimal number of big-endian bytes holding n.
func sizeBytes(n int) int {
	d := 0
	for n > 0 {
		n >>= 8
		d++
	}
	return d
}

// sizeValueBytes returns the significant bytes of n, big-endian.
func sizeValueBytes(n int) []byte {
	d := sizeBytes(n)
	v := make([]byte, d)
	for i := d - 1; i >= 0; i-- {
		v[i] = byte(n)
		n >>= 8
	}
	return v
}
