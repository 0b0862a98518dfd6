package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF fills buffer with key material expanded from secret.
// Uses HKDF with SHA-256.
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// ExportKey derives the 32-byte sealing key for state snapshots from a
// passphrase. The salt is stored alongside the sealed snapshot.
func ExportKey(passphrase string, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := HKDF([]byte(passphrase), salt, []byte("StateExport"), key); err != nil {
		return nil, err
	}
	return key, nil
}
