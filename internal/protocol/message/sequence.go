package message

import (
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/link"
)

// Sequence points readers at a publisher's next application message in
// a multi-branch channel: who published, where, and at which sequence
// number.
type Sequence struct {
	PublisherPk ed25519.PublicKey
	RefRel      link.Rel
	SeqNum      uint64
}

func (s *Sequence) Type() uint8 {
	return ContentSequence
}

func (s *Sequence) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(make(ddml.NBytes, signature.PublicKeySize)).
		Absorb(make(ddml.NBytes, link.RelSize)).
		Absorb(ddml.Uint64(s.SeqNum)).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (s *Sequence) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	return c.Absorb(ddml.NBytes(s.PublisherPk)).
		Absorb(ddml.NBytes(s.RefRel[:])).
		Absorb(ddml.Uint64(s.SeqNum)).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (s *Sequence) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	pk := make(ddml.NBytes, signature.PublicKeySize)
	rel := make(ddml.NBytes, link.RelSize)
	var seq ddml.Uint64
	c.Absorb(pk).
		Absorb(rel).
		Absorb(&seq).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
	if c.Err() != nil {
		return c
	}
	s.PublisherPk = ed25519.PublicKey(pk)
	copy(s.RefRel[:], rel)
	s.SeqNum = uint64(seq)
	return c
}
