package message

import (
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

// SignedPacket carries application data signed by its publisher: a
// public part readable by anyone holding the frame, and a masked part
// readable only under the channel's session key.
type SignedPacket struct {
	PublisherPk ed25519.PublicKey
	Public      []byte
	Masked      []byte

	// PublisherSk signs on wrap; unused on unwrap.
	PublisherSk ed25519.PrivateKey
}

func (p *SignedPacket) Type() uint8 {
	return ContentSignedPacket
}

func (p *SignedPacket) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(make(ddml.NBytes, signature.PublicKeySize)).
		Absorb(ddml.Bytes(p.Public)).
		Mask(ddml.Bytes(p.Masked)).
		Commit().
		Skip(make(ddml.NBytes, signature.SignatureSize))
}

func (p *SignedPacket) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(ddml.NBytes(p.PublisherPk)).
		Absorb(ddml.Bytes(p.Public)).
		Mask(ddml.Bytes(p.Masked)).
		Commit()
	if c.Err() != nil {
		return c
	}
	hash := make(ddml.NBytes, spongos.HashSize)
	c.SqueezeExternal(hash)
	sig := signature.ED25519Sign(p.PublisherSk, hash)
	return c.Skip(ddml.NBytes(sig))
}

func (p *SignedPacket) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	pk := make(ddml.NBytes, signature.PublicKeySize)
	var public, masked ddml.Bytes
	c.Absorb(pk).
		Absorb(&public).
		Mask(&masked).
		Commit()
	if c.Err() != nil {
		return c
	}
	hash := make(ddml.NBytes, spongos.HashSize)
	sig := make(ddml.NBytes, signature.SignatureSize)
	c.SqueezeExternal(hash).
		Skip(sig).
		Guard(signature.ED25519Verify(ed25519.PublicKey(pk), hash, sig), ErrSignatureInvalid)
	if c.Err() != nil {
		return c
	}
	p.PublisherPk = ed25519.PublicKey(pk)
	p.Public = public
	p.Masked = masked
	return c
}
