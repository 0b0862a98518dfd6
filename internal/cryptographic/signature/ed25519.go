package signature

import (
	"crypto/ed25519"
	"crypto/rand"
)

// SignatureSize is the length of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// PublicKeySize is the length of an Ed25519 public key in bytes.
const PublicKeySize = ed25519.PublicKeySize

func NewEd25519Keypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// KeypairFromSeed derives the identity key pair from a 32-byte seed.
// The same seed always yields the same identity.
func KeypairFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv
}

func ED25519Sign(privKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privKey, message)
}

func ED25519Verify(pubKey ed25519.PublicKey, message []byte, signature []byte) bool {
	return ed25519.Verify(pubKey, message, signature)
}

// KeyBytes copies a public key into the fixed-width form used as a store
// index.
func KeyBytes(pk ed25519.PublicKey) [PublicKeySize]byte {
	var out [PublicKeySize]byte
	copy(out[:], pk)
	return out
}
