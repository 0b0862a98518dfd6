// Package link models transport addresses of channel frames. A full
// address has two projections: the Base identifies the channel instance
// ("appinst") and the Rel identifies one message inside it ("msgid").
package link

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

const (
	// BaseSize is the width of the channel component in bytes.
	BaseSize = 40
	// RelSize is the width of the per-message component in bytes.
	RelSize = 12
)

const (
	appinstDomain = "streams:appinst"
	msgidDomain   = "streams:msgid"
)

type (
	// Base is the channel instance component of an address.
	Base [BaseSize]byte

	// Rel is the per-message component of an address.
	Rel [RelSize]byte

	// Link is a full transport address.
	Link struct {
		Base Base
		Rel  Rel
	}
)

// Bytes returns the wire form of the address, base then rel.
func (l Link) Bytes() []byte {
	out := make([]byte, 0, BaseSize+RelSize)
	out = append(out, l.Base[:]...)
	return append(out, l.Rel[:]...)
}

// FromBytes parses the wire form produced by Bytes.
func FromBytes(b []byte) (Link, error) {
	var l Link
	if len(b) != BaseSize+RelSize {
		return l, fmt.Errorf("link: bad address length %d", len(b))
	}
	copy(l.Base[:], b[:BaseSize])
	copy(l.Rel[:], b[BaseSize:])
	return l, nil
}

// String renders the channel component as hex.
func (b Base) String() string {
	return hex.EncodeToString(b[:])
}

// String renders the address as "<base hex>:<rel hex>".
func (l Link) String() string {
	return l.Base.String() + ":" + hex.EncodeToString(l.Rel[:])
}

// Parse reads the form produced by String.
func Parse(s string) (Link, error) {
	var l Link
	base, rel, ok := strings.Cut(s, ":")
	if !ok {
		return l, fmt.Errorf("link: missing separator in %q", s)
	}
	b, err := hex.DecodeString(base)
	if err != nil || len(b) != BaseSize {
		return l, fmt.Errorf("link: bad base component in %q", s)
	}
	r, err := hex.DecodeString(rel)
	if err != nil || len(r) != RelSize {
		return l, fmt.Errorf("link: bad rel component in %q", s)
	}
	copy(l.Base[:], b)
	copy(l.Rel[:], r)
	return l, nil
}

// AbsorbInto feeds the address to a frame authenticator. Addresses ride
// the external input track; they are never part of the wire bytes.
func (l Link) AbsorbInto(sp *spongos.Spongos) {
	sp.AbsorbMeta(l.Base[:])
	sp.AbsorbMeta(l.Rel[:])
}

// Generator derives addresses for one channel instance. Its only state
// is the channel base, so regenerating from the same author key and
// channel index always yields the same addresses.
type Generator struct {
	appinst Base
}

// NewGenerator returns a generator with no channel bound yet.
func NewGenerator() *Generator {
	return &Generator{}
}

// Seed binds the generator to the channel identified by the author's
// signing key and a channel index, and returns the derived base.
func (g *Generator) Seed(authorPk ed25519.PublicKey, channelIdx uint64) Base {
	sp := spongos.New(appinstDomain)
	sp.Absorb(authorPk)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], channelIdx)
	sp.Absorb(idx[:])
	sp.Commit()
	sp.SqueezeInto(g.appinst[:])
	return g.appinst
}

// Reset rebinds the generator to an already known channel base.
func (g *Generator) Reset(base Base) {
	g.appinst = base
}

// Base returns the bound channel base.
func (g *Generator) Base() Base {
	return g.appinst
}

// Announce returns the address of the channel's announcement, fixed by
// the base alone.
func (g *Generator) Announce() Link {
	return Link{Base: g.appinst, Rel: g.derive(Rel{}, nil, 0)}
}

// MsgID derives the address of the publisher's next message from the
// causal parent, the publisher's signing key, and its sequence number.
func (g *Generator) MsgID(prev Rel, pk ed25519.PublicKey, seq uint64) Link {
	return Link{Base: g.appinst, Rel: g.derive(prev, pk, seq)}
}

func (g *Generator) derive(prev Rel, pk ed25519.PublicKey, seq uint64) Rel {
	sp := spongos.New(msgidDomain)
	sp.Absorb(g.appinst[:])
	sp.Absorb(prev[:])
	sp.Absorb(pk)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], seq)
	sp.Absorb(n[:])
	sp.Commit()
	var rel Rel
	sp.SqueezeInto(rel[:])
	return rel
}
