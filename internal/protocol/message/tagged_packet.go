package message

import (
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

// TaggedPacket carries application data authenticated by the channel
// state alone: any holder of the session key can produce or verify it,
// without naming a publisher.
type TaggedPacket struct {
	Public []byte
	Masked []byte
}

func (p *TaggedPacket) Type() uint8 {
	return ContentTaggedPacket
}

func (p *TaggedPacket) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(ddml.Bytes(p.Public)).
		Mask(ddml.Bytes(p.Masked)).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (p *TaggedPacket) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	return c.Absorb(ddml.Bytes(p.Public)).
		Mask(ddml.Bytes(p.Masked)).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (p *TaggedPacket) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	var public, masked ddml.Bytes
	c.Absorb(&public).
		Mask(&masked).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
	if c.Err() != nil {
		return c
	}
	p.Public = public
	p.Masked = masked
	return c
}
