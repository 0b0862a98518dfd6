package psk

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

const (
	// KeySize is the length of a pre-shared key in bytes.
	KeySize = 32
	// IDSize is the fixed width of a pre-shared key identifier in bytes.
	IDSize = 16
)

type (
	// Key is an opaque symmetric secret shared out of band.
	Key [KeySize]byte

	// ID indexes a Key inside a store and on the wire.
	ID [IDSize]byte
)

// New generates a random pre-shared key.
func New() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("failed to generate psk: %w", err)
	}
	return k, nil
}

// FromSeed derives a pre-shared key from seed material. The same seed
// always yields the same key.
func FromSeed(seed []byte) Key {
	var k Key
	s := spongos.New("streams:psk")
	s.Absorb(seed)
	s.SqueezeInto(k[:])
	return k
}

// IDOf derives the identifier of a key. Identifiers are stable across
// participants holding the same key.
func IDOf(k Key) ID {
	var id ID
	s := spongos.New("streams:pskid")
	s.Absorb(k[:])
	s.SqueezeInto(id[:])
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
