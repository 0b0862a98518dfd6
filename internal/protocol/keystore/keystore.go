// Package keystore holds per-channel participant state: identity keys
// with their precomputed key-agreement keys and sequencing info, and the
// pre-shared keys admitted to the channel.
package keystore

import (
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/protocol/link"
)

// SequencingState tracks one publisher's position in the channel: the
// address of its last accepted frame and that frame's sequence number.
type SequencingState struct {
	Link link.Link
	Seq  uint64
}

type pkEntry struct {
	ik   ed25519.PublicKey
	ka   [dh.KeySize]byte
	info SequencingState
}

// PublicKeyMap maps identity keys to their key-agreement key and
// sequencing info. The key-agreement key is derived exactly once, when
// the identity is first inserted.
//
// The map is not safe for concurrent mutation; callers serialize.
type PublicKeyMap struct {
	m map[[signature.PublicKeySize]byte]*pkEntry
}

// NewPublicKeyMap returns an empty store.
func NewPublicKeyMap() *PublicKeyMap {
	return &PublicKeyMap{m: make(map[[signature.PublicKeySize]byte]*pkEntry)}
}

// Insert adds ik with the given sequencing info, deriving its
// key-agreement key. Re-inserting a known ik overwrites the info and
// keeps the already derived key-agreement key.
func (s *PublicKeyMap) Insert(ik ed25519.PublicKey, info SequencingState) error {
	k := signature.KeyBytes(ik)
	if e, ok := s.m[k]; ok {
		e.info = info
		return nil
	}
	ka, err := dh.PublicFromEd25519(ik)
	if err != nil {
		return err
	}
	s.m[k] = &pkEntry{ik: ik, ka: ka, info: info}
	return nil
}

// Get returns the sequencing info of ik.
func (s *PublicKeyMap) Get(ik ed25519.PublicKey) (SequencingState, bool) {
	e, ok := s.m[signature.KeyBytes(ik)]
	if !ok {
		return SequencingState{}, false
	}
	return e.info, true
}

// GetMut returns a pointer to the sequencing info of ik, valid until the
// entry is removed.
func (s *PublicKeyMap) GetMut(ik ed25519.PublicKey) (*SequencingState, bool) {
	e, ok := s.m[signature.KeyBytes(ik)]
	if !ok {
		return nil, false
	}
	return &e.info, true
}

// GetKA returns the key-agreement key derived for ik.
func (s *PublicKeyMap) GetKA(ik ed25519.PublicKey) ([dh.KeySize]byte, bool) {
	e, ok := s.m[signature.KeyBytes(ik)]
	if !ok {
		return [dh.KeySize]byte{}, false
	}
	return e.ka, true
}

// Contains reports whether ik is in the store.
func (s *PublicKeyMap) Contains(ik ed25519.PublicKey) bool {
	_, ok := s.m[signature.KeyBytes(ik)]
	return ok
}

// Remove drops ik from the store.
func (s *PublicKeyMap) Remove(ik ed25519.PublicKey) {
	delete(s.m, signature.KeyBytes(ik))
}

// Recipient pairs an identity key with its key-agreement key.
type Recipient struct {
	IK ed25519.PublicKey
	KA [dh.KeySize]byte
}

// Filter returns the subset of iks present in the store, each paired
// with its key-agreement key. Order follows the argument order.
func (s *PublicKeyMap) Filter(iks []ed25519.PublicKey) []Recipient {
	out := make([]Recipient, 0, len(iks))
	for _, ik := range iks {
		if e, ok := s.m[signature.KeyBytes(ik)]; ok {
			out = append(out, Recipient{IK: e.ik, KA: e.ka})
		}
	}
	return out
}

// Keys returns all identity keys in the store, in no particular order.
func (s *PublicKeyMap) Keys() []ed25519.PublicKey {
	out := make([]ed25519.PublicKey, 0, len(s.m))
	for _, e := range s.m {
		out = append(out, e.ik)
	}
	return out
}

// Each visits every entry. The info pointer may be mutated in place.
// Visit order is unspecified.
func (s *PublicKeyMap) Each(fn func(ik ed25519.PublicKey, ka [dh.KeySize]byte, info *SequencingState)) {
	for _, e := range s.m {
		fn(e.ik, e.ka, &e.info)
	}
}

// Len returns the number of identities in the store.
func (s *PublicKeyMap) Len() int {
	return len(s.m)
}

// PresharedKeyMap maps pre-shared key identifiers to keys. Identifiers
// are unique; re-inserting one replaces its key.
type PresharedKeyMap struct {
	m map[psk.ID]psk.Key
}

// NewPresharedKeyMap returns an empty store.
func NewPresharedKeyMap() *PresharedKeyMap {
	return &PresharedKeyMap{m: make(map[psk.ID]psk.Key)}
}

// Insert adds a key under its identifier.
func (s *PresharedKeyMap) Insert(id psk.ID, key psk.Key) {
	s.m[id] = key
}

// Get returns the key stored under id.
func (s *PresharedKeyMap) Get(id psk.ID) (psk.Key, bool) {
	k, ok := s.m[id]
	return k, ok
}

// PskEntry pairs an identifier with its key.
type PskEntry struct {
	ID  psk.ID
	Key psk.Key
}

// Filter returns the subset of ids present in the store, each paired
// with its key. Order follows the argument order.
func (s *PresharedKeyMap) Filter(ids []psk.ID) []PskEntry {
	out := make([]PskEntry, 0, len(ids))
	for _, id := range ids {
		if k, ok := s.m[id]; ok {
			out = append(out, PskEntry{ID: id, Key: k})
		}
	}
	return out
}

// Each visits every entry in unspecified order.
func (s *PresharedKeyMap) Each(fn func(id psk.ID, key psk.Key)) {
	for id, k := range s.m {
		fn(id, k)
	}
}

// Len returns the number of keys in the store.
func (s *PresharedKeyMap) Len() int {
	return len(s.m)
}
