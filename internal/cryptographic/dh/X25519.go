package dh

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the width of X25519 keys in bytes.
const KeySize = 32

// Generate a new X25519 key pair
func NewX25519KeyPair() (priv, pub [32]byte, err error) {
	_, err = rand.Read(priv[:])
	if err != nil {
		return priv, pub, fmt.Errorf("failed to generate private key: %w", err)
	}
	curve25519.ScalarBaseMult(&pub, &priv)
	return priv, pub, nil
}

// Perform X25519 scalar multiplication: priv * pub
func X25519SharedSecret(priv, pub [32]byte) ([]byte, error) {
	return curve25519.X25519(priv[:], pub[:])
}

// PublicFromEd25519 maps an Ed25519 public key to its X25519 counterpart
// through the birational map onto Curve25519 (Edwards y to Montgomery u).
// Derivation is deterministic; callers cache the result per identity.
func PublicFromEd25519(pk ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	if len(pk) != ed25519.PublicKeySize {
		return out, fmt.Errorf("bad ed25519 public key length: %d", len(pk))
	}
	p, err := new(edwards25519.Point).SetBytes(pk)
	if err != nil {
		return out, fmt.Errorf("not a curve point: %w", err)
	}
	// SetBytes tolerates some non-canonical encodings; an identity key
	// must have exactly one byte form.
	if !bytes.Equal(p.Bytes(), pk) {
		return out, fmt.Errorf("non-canonical point encoding")
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// SecretFromEd25519 derives the X25519 private scalar whose public key is
// PublicFromEd25519 of the matching Ed25519 public key.
func SecretFromEd25519(sk ed25519.PrivateKey) [32]byte {
	h := sha512.Sum512(sk.Seed())
	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}
