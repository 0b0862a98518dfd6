package message

import (
	"crypto/ed25519"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

// Subscribe requests membership in a channel. The subscriber sends an
// unsubscribe key to the author, masked under a fresh X25519 agreement
// with the author's key-agreement key, and signs the frame with its
// identity key.
type Subscribe struct {
	SubscriberPk ed25519.PublicKey
	UnsubKey     [dh.KeySize]byte

	// Wrap side.
	SubscriberSk ed25519.PrivateKey
	AuthorKA     [dh.KeySize]byte

	// Unwrap side: the author's key-agreement secret.
	AuthorKASecret [dh.KeySize]byte

	ephPk, ephSk [dh.KeySize]byte
}

// NewSubscribe prepares a subscription frame for wrapping, generating
// the ephemeral key agreement pair.
func NewSubscribe(subPk ed25519.PublicKey, subSk ed25519.PrivateKey, unsubKey [dh.KeySize]byte, authorKA [dh.KeySize]byte) (*Subscribe, error) {
	ephSk, ephPk, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("message: subscribe ephemeral key: %w", err)
	}
	return &Subscribe{
		SubscriberPk: subPk,
		SubscriberSk: subSk,
		UnsubKey:     unsubKey,
		AuthorKA:     authorKA,
		ephPk:        ephPk,
		ephSk:        ephSk,
	}, nil
}

func (s *Subscribe) Type() uint8 {
	return ContentSubscribe
}

func (s *Subscribe) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(make(ddml.NBytes, dh.KeySize)).
		Fork(func(f *ddml.SizeofContext) {
			f.AbsorbKey(nil).Mask(make(ddml.NBytes, dh.KeySize))
		}).
		Absorb(make(ddml.NBytes, signature.PublicKeySize)).
		Commit().
		Skip(make(ddml.NBytes, signature.SignatureSize))
}

func (s *Subscribe) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(ddml.NBytes(s.ephPk[:]))
	if c.Err() != nil {
		return c
	}
	secret, err := dh.X25519SharedSecret(s.ephSk, s.AuthorKA)
	if err != nil {
		return c.Guard(false, fmt.Errorf("message: subscribe key agreement: %w", err))
	}
	c.Fork(func(f *ddml.WrapContext) {
		f.AbsorbKey(secret).Mask(ddml.NBytes(s.UnsubKey[:]))
	}).
		Absorb(ddml.NBytes(s.SubscriberPk)).
		Commit()
	if c.Err() != nil {
		return c
	}
	hash := make(ddml.NBytes, spongos.HashSize)
	c.SqueezeExternal(hash)
	sig := signature.ED25519Sign(s.SubscriberSk, hash)
	return c.Skip(ddml.NBytes(sig))
}

func (s *Subscribe) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	eph := make(ddml.NBytes, dh.KeySize)
	c.Absorb(eph)
	if c.Err() != nil {
		return c
	}
	copy(s.ephPk[:], eph)
	secret, err := dh.X25519SharedSecret(s.AuthorKASecret, s.ephPk)
	if err != nil {
		return c.Guard(false, fmt.Errorf("message: subscribe key agreement: %w", err))
	}
	unsub := make(ddml.NBytes, dh.KeySize)
	pk := make(ddml.NBytes, signature.PublicKeySize)
	c.Fork(func(f *ddml.UnwrapContext) {
		f.AbsorbKey(secret).Mask(unsub)
	}).
		Absorb(pk).
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
	s.SubscriberPk = ed25519.PublicKey(pk)
	copy(s.UnsubKey[:], unsub)
	return c
}
