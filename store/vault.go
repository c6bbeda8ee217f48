package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	vaultDirPerm  = fs.FileMode(0o700)
	vaultFilePerm = fs.FileMode(0o600)

	// vaultOpenTimeout bounds how long to wait for the bolt file lock.
	vaultOpenTimeout = 5 * time.Second

	// sealKeyName is the standard-tier entry holding the vault sealing key.
	sealKeyName = "vault_seal_key"
)

var secretsBucket = []byte("secrets")

// Vault is a protected-tier backend: a bbolt file whose values are sealed
// with ChaCha20-Poly1305. The sealing key lives outside the vault file
// (normally in the standard tier) so the file alone is useless to an
// attacker. Presence gating is applied by Dual, not here.
type Vault struct {
	db  *bolt.DB
	key []byte
}

// NewVault opens (creating if needed) the vault file at path using the given
// 32-byte sealing key.
func NewVault(path string, sealKey []byte) (*Vault, error) {
	if path == "" {
		return nil, ErrEnclaveUnavailable
	}
	if len(sealKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: sealing key must be %d bytes", ErrEnclaveUnavailable, chacha20poly1305.KeySize)
	}
	if err := os.MkdirAll(filepath.Dir(path), vaultDirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnclaveUnavailable, err)
	}

	db, err := bolt.Open(path, vaultFilePerm, &bolt.Options{Timeout: vaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnclaveUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(secretsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrEnclaveUnavailable, err)
	}

	key := make([]byte, len(sealKey))
	copy(key, sealKey)
	return &Vault{db: db, key: key}, nil
}

// Close releases the underlying bolt file.
func (v *Vault) Close() error {
	return v.db.Close()
}

func (v *Vault) Get(ctx context.Context, key string) ([]byte, error) {
	var sealed []byte
	err := v.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(secretsBucket).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		sealed = make([]byte, len(raw))
		copy(sealed, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v.open(sealed)
}

func (v *Vault) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := v.seal(value)
	if err != nil {
		return err
	}
	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(secretsBucket).Put([]byte(key), sealed)
	})
}

func (v *Vault) Delete(ctx context.Context, key string) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(secretsBucket).Delete([]byte(key))
	})
}

func (v *Vault) Wipe(ctx context.Context) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(secretsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(secretsBucket)
		return err
	})
}

func (v *Vault) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *Vault) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("store: sealed value truncated")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("store: unseal failed: %w", err)
	}
	return plaintext, nil
}

// LoadOrCreateSealKey fetches the vault sealing key from the standard-tier
// backend, generating and persisting a fresh one on first use.
func LoadOrCreateSealKey(ctx context.Context, standard Backend) ([]byte, error) {
	key, err := standard.Get(ctx, sealKeyName)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("store: stored sealing key has wrong size %d", len(key))
		}
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := standard.Set(ctx, sealKeyName, key); err != nil {
		return nil, err
	}
	return key, nil
}
