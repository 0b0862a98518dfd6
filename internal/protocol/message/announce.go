package message

import (
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

// FlagMultiBranch marks a channel whose publishers emit sequence frames
// alongside application messages.
const FlagMultiBranch uint8 = 1

// Announce declares a channel: the author's identity key and the
// channel flags, signed by the author. It is the root of every channel
// and the first frame any subscriber processes.
type Announce struct {
	AuthorPk ed25519.PublicKey
	Flags    uint8

	// AuthorSk signs on wrap; unused on unwrap.
	AuthorSk ed25519.PrivateKey
}

func (a *Announce) Type() uint8 {
	return ContentAnnounce
}

func (a *Announce) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(make(ddml.NBytes, signature.PublicKeySize)).
		Absorb(ddml.Uint8(a.Flags)).
		Commit().
		Skip(make(ddml.NBytes, signature.SignatureSize))
}

func (a *Announce) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(ddml.NBytes(a.AuthorPk)).
		Absorb(ddml.Uint8(a.Flags)).
		Commit()
	if c.Err() != nil {
		return c
	}
	hash := make(ddml.NBytes, spongos.HashSize)
	c.SqueezeExternal(hash)
	sig := signature.ED25519Sign(a.AuthorSk, hash)
	return c.Skip(ddml.NBytes(sig))
}

func (a *Announce) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	pk := make(ddml.NBytes, signature.PublicKeySize)
	var flags ddml.Uint8
	c.Absorb(pk).
		Absorb(&flags).
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
	a.AuthorPk = ed25519.PublicKey(pk)
	a.Flags = uint8(flags)
	return c
}
