// Package keys manages an asymmetric signing keypair whose private material
// lives in the protected storage tier. Servers verify possession by having
// the client sign a challenge string.
package keys

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfej94/authkit/store"
)

// ErrKeyNotFound is returned by Sign when no key id has been recorded yet.
var ErrKeyNotFound = errors.New("keys: no signing key recorded")

// DefaultBits is the RSA modulus size used when none is configured.
const DefaultBits = 2048

const privateKeyPEMType = "RSA PRIVATE KEY"

// Custodian generates, persists, loads, and uses the signing keypair. The
// private key is stored PEM-encoded in the protected tier under its id; the
// id pointer lives in the standard tier so existence checks never prompt.
type Custodian struct {
	store store.Store
	bits  int
}

// CustodianOption configures a Custodian.
type CustodianOption func(*Custodian)

// WithBits sets the RSA modulus size for newly generated keys.
func WithBits(bits int) CustodianOption {
	return func(c *Custodian) { c.bits = bits }
}

// NewCustodian creates a Custodian over the given store.
func NewCustodian(st store.Store, opts ...CustodianOption) *Custodian {
	c := &Custodian{store: st, bits: DefaultBits}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateOrLoad returns the existing keypair when an id is recorded,
// generating and persisting a fresh one otherwise. Loading and storing the
// private material requires user-presence verification.
func (c *Custodian) GenerateOrLoad(ctx context.Context) (*Handle, error) {
	id, err := c.recordedID(ctx)
	if err == nil {
		return c.load(ctx, id)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return c.generate(ctx)
}

// Sign loads the recorded key and signs the UTF-8 bytes of challenge with
// RSASSA-PKCS1-v1_5 over SHA-256, returning the signature base64-encoded.
// Fails with ErrKeyNotFound when no key has been generated.
func (c *Custodian) Sign(ctx context.Context, challenge string) (string, error) {
	id, err := c.recordedID(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", err
	}

	key, err := c.loadPrivate(ctx, id)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(challenge))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("keys: sign failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (c *Custodian) recordedID(ctx context.Context) (uuid.UUID, error) {
	raw, err := c.store.Get(ctx, store.TierStandard, store.KeyRSAKeyID)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("keys: corrupt key id record: %w", err)
	}
	return id, nil
}

func (c *Custodian) load(ctx context.Context, id uuid.UUID) (*Handle, error) {
	key, err := c.loadPrivate(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Handle{ID: id, private: key}, nil
}

func (c *Custodian) loadPrivate(ctx context.Context, id uuid.UUID) (*rsa.PrivateKey, error) {
	raw, err := c.store.Get(ctx, store.TierProtected, id.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil || block.Type != privateKeyPEMType {
		return nil, fmt.Errorf("keys: stored key %s is not a PEM private key", id)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parse stored key %s: %w", id, err)
	}
	return key, nil
}

func (c *Custodian) generate(ctx context.Context) (*Handle, error) {
	key, err := rsa.GenerateKey(rand.Reader, c.bits)
	if err != nil {
		return nil, fmt.Errorf("keys: generate RSA key: %w", err)
	}

	id := uuid.New()
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := c.store.Set(ctx, store.TierProtected, id.String(), pemBytes); err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, store.TierStandard, store.KeyRSAKeyID, []byte(id.String())); err != nil {
		// Unreferenced key material is unusable; best effort cleanup.
		_ = c.store.Delete(ctx, store.TierProtected, id.String())
		return nil, err
	}
	return &Handle{ID: id, private: key}, nil
}
