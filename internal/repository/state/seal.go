package state

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kwek20/streams/internal/cryptographic/encryption"
	"github.com/kwek20/streams/internal/cryptographic/kdf"
	"github.com/kwek20/streams/internal/model"
)

const saltSize = 16

// Seal encrypts a snapshot under a passphrase-derived key. The record
// name rides as associated data, so a sealed snapshot cannot be
// reattached to another name.
func Seal(snap *model.Snapshot, name, passphrase string) (*model.SealedSnapshot, error) {
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key, err := kdf.ExportKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	data, err := encryption.AEADEncrypt(key, plain, []byte(name))
	if err != nil {
		return nil, err
	}

	return &model.SealedSnapshot{
		Name: name,
		Salt: salt,
		Data: data,
	}, nil
}

// Open decrypts a stored snapshot with the passphrase it was sealed
// under.
func Open(sealed *model.SealedSnapshot, passphrase string) (*model.Snapshot, error) {
	key, err := kdf.ExportKey(passphrase, sealed.Salt)
	if err != nil {
		return nil, err
	}

	plain, err := encryption.AEADDecrypt(key, sealed.Data, []byte(sealed.Name))
	if err != nil {
		return nil, fmt.Errorf("open snapshot %q: %w", sealed.Name, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}
