package message

import (
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

// Unsubscribe withdraws a subscriber from a channel, signed with the
// subscriber's identity key.
type Unsubscribe struct {
	SubscriberPk ed25519.PublicKey

	// SubscriberSk signs on wrap; unused on unwrap.
	SubscriberSk ed25519.PrivateKey
}

func (u *Unsubscribe) Type() uint8 {
	return ContentUnsubscribe
}

func (u *Unsubscribe) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(make(ddml.NBytes, signature.PublicKeySize)).
		Commit().
		Skip(make(ddml.NBytes, signature.SignatureSize))
}

func (u *Unsubscribe) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(ddml.NBytes(u.SubscriberPk)).
		Commit()
	if c.Err() != nil {
		return c
	}
	hash := make(ddml.NBytes, spongos.HashSize)
	c.SqueezeExternal(hash)
	sig := signature.ED25519Sign(u.SubscriberSk, hash)
	return c.Skip(ddml.NBytes(sig))
}

func (u *Unsubscribe) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	pk := make(ddml.NBytes, signature.PublicKeySize)
	c.Absorb(pk).
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
	u.SubscriberPk = ed25519.PublicKey(pk)
	return c
}
