package message

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/keystore"
)

// SessionKeySize is the width of the key a keyload distributes.
const SessionKeySize = 32

const keyloadNonceSize = 16

// Keyload distributes a fresh session key to the channel: once to every
// admitted pre-shared key and once to every admitted subscriber, each
// copy masked under a key only that recipient can derive. Frames after
// the keyload mask their payloads under the session key.
type Keyload struct {
	Nonce      [keyloadNonceSize]byte
	SessionKey [SessionKeySize]byte

	// Wrap side.
	pskEntries []keystore.PskEntry
	kaEntries  []kaRecipient

	// Unwrap side: the reader's keys. Psks may be nil; the key-agreement
	// pair is ignored while KASecret is zero.
	Psks     *keystore.PresharedKeyMap
	OwnKA    [dh.KeySize]byte
	KASecret [dh.KeySize]byte
}

type kaRecipient struct {
	ka           [dh.KeySize]byte
	ephPk, ephSk [dh.KeySize]byte
}

// NewKeyload prepares a keyload for wrapping: a fresh nonce, a fresh
// session key, and one ephemeral key-agreement pair per subscriber.
func NewKeyload(psks []keystore.PskEntry, recipients []keystore.Recipient) (*Keyload, error) {
	var k Keyload
	if _, err := rand.Read(k.Nonce[:]); err != nil {
		return nil, fmt.Errorf("message: keyload nonce: %w", err)
	}
	if _, err := rand.Read(k.SessionKey[:]); err != nil {
		return nil, fmt.Errorf("message: keyload session key: %w", err)
	}
	k.pskEntries = psks
	for _, r := range recipients {
		ephSk, ephPk, err := dh.NewX25519KeyPair()
		if err != nil {
			return nil, fmt.Errorf("message: keyload ephemeral key: %w", err)
		}
		k.kaEntries = append(k.kaEntries, kaRecipient{ka: r.KA, ephPk: ephPk, ephSk: ephSk})
	}
	return &k, nil
}

func (k *Keyload) Type() uint8 {
	return ContentKeyload
}

func (k *Keyload) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	c.Absorb(make(ddml.NBytes, keyloadNonceSize)).
		Absorb(ddml.Size(len(k.pskEntries)))
	for range k.pskEntries {
		c.Absorb(make(ddml.NBytes, psk.IDSize)).
			Fork(func(f *ddml.SizeofContext) {
				f.AbsorbKey(nil).Mask(make(ddml.NBytes, SessionKeySize))
			})
	}
	c.Absorb(ddml.Size(len(k.kaEntries)))
	for range k.kaEntries {
		c.Absorb(make(ddml.NBytes, dh.KeySize)).
			Absorb(make(ddml.NBytes, dh.KeySize)).
			Fork(func(f *ddml.SizeofContext) {
				f.AbsorbKey(nil).Mask(make(ddml.NBytes, SessionKeySize))
			})
	}
	return c.AbsorbKey(nil).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (k *Keyload) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(ddml.NBytes(k.Nonce[:])).
		Absorb(ddml.Size(len(k.pskEntries)))
	for _, e := range k.pskEntries {
		c.Absorb(ddml.NBytes(e.ID[:])).
			Fork(func(f *ddml.WrapContext) {
				f.AbsorbKey(e.Key[:]).Mask(ddml.NBytes(k.SessionKey[:]))
			})
	}
	c.Absorb(ddml.Size(len(k.kaEntries)))
	for _, e := range k.kaEntries {
		c.Absorb(ddml.NBytes(e.ka[:])).
			Absorb(ddml.NBytes(e.ephPk[:]))
		if c.Err() != nil {
			return c
		}
		secret, err := dh.X25519SharedSecret(e.ephSk, e.ka)
		if err != nil {
			return c.Guard(false, fmt.Errorf("message: keyload key agreement: %w", err))
		}
		c.Fork(func(f *ddml.WrapContext) {
			f.AbsorbKey(secret).Mask(ddml.NBytes(k.SessionKey[:]))
		})
	}
	return c.AbsorbKey(k.SessionKey[:]).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
}

func (k *Keyload) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	nonce := make(ddml.NBytes, keyloadNonceSize)
	var nPsk, nKa ddml.Size
	recovered := false

	c.Absorb(nonce).
		Absorb(&nPsk)
	for i := 0; i < int(nPsk) && c.Err() == nil; i++ {
		id := make(ddml.NBytes, psk.IDSize)
		c.Absorb(id)
		if c.Err() != nil {
			break
		}
		var pid psk.ID
		copy(pid[:], id)
		key, known := psk.Key{}, false
		if k.Psks != nil {
			key, known = k.Psks.Get(pid)
		}
		if known && !recovered {
			session := make(ddml.NBytes, SessionKeySize)
			c.Fork(func(f *ddml.UnwrapContext) {
				f.AbsorbKey(key[:]).Mask(session)
			})
			if c.Err() == nil {
				copy(k.SessionKey[:], session)
				recovered = true
			}
		} else {
			c.Skip(make(ddml.NBytes, SessionKeySize))
		}
	}

	c.Absorb(&nKa)
	for i := 0; i < int(nKa) && c.Err() == nil; i++ {
		ka := make(ddml.NBytes, dh.KeySize)
		eph := make(ddml.NBytes, dh.KeySize)
		c.Absorb(ka).
			Absorb(eph)
		if c.Err() != nil {
			break
		}
		mine := !recovered && k.KASecret != ([dh.KeySize]byte{}) && bytes.Equal(ka, k.OwnKA[:])
		if !mine {
			c.Skip(make(ddml.NBytes, SessionKeySize))
			continue
		}
		var ephPk [dh.KeySize]byte
		copy(ephPk[:], eph)
		secret, err := dh.X25519SharedSecret(k.KASecret, ephPk)
		if err != nil {
			return c.Guard(false, fmt.Errorf("message: keyload key agreement: %w", err))
		}
		session := make(ddml.NBytes, SessionKeySize)
		c.Fork(func(f *ddml.UnwrapContext) {
			f.AbsorbKey(secret).Mask(session)
		})
		if c.Err() == nil {
			copy(k.SessionKey[:], session)
			recovered = true
		}
	}

	c.Guard(recovered, ErrNoKeyloadAccess)
	if c.Err() != nil {
		return c
	}
	c.AbsorbKey(k.SessionKey[:]).
		Commit().
		Squeeze(ddml.Mac(spongos.MacSize))
	if c.Err() != nil {
		return c
	}
	copy(k.Nonce[:], nonce)
	return c
}
