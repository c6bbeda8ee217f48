package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
)

// Handle wraps a loaded keypair. The private key is borrowed transiently
// from the protected tier; only the id and public half are meant to leave
// the process.
type Handle struct {
	ID uuid.UUID

	private *rsa.PrivateKey
}

// PublicKey returns the base64-encoded DER (PKIX) public key.
func (h *Handle) PublicKey() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&h.private.PublicKey)
	if err != nil {
		return "", fmt.Errorf("keys: marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// JWK returns the public key as a JSON Web Key, keyed by the handle id, for
// servers that accept JWK uploads.
func (h *Handle) JWK() (jose.JSONWebKey, error) {
	return jose.JSONWebKey{
		Key:       &h.private.PublicKey,
		KeyID:     h.ID.String(),
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}, nil
}

// Sign signs the UTF-8 bytes of challenge with RSASSA-PKCS1-v1_5 over
// SHA-256, returning the signature base64-encoded.
func (h *Handle) Sign(challenge string) (string, error) {
	digest := sha256.Sum256([]byte(challenge))
	sig, err := rsa.SignPKCS1v15(rand.Reader, h.private, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("keys: sign failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// MarshalJSON encodes the handle as {"id", "public_key"} for registering the
// key with a server.
func (h *Handle) MarshalJSON() ([]byte, error) {
	pub, err := h.PublicKey()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID        string `json:"id"`
		PublicKey string `json:"public_key"`
	}{h.ID.String(), pub})
}
