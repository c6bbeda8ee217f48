// Package store provides two-tier secure credential storage. The standard
// tier is readable whenever the device session is unlocked; the protected
// tier requires user-presence verification on every access.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Tier selects which storage tier an operation targets.
type Tier int

const (
	// TierStandard is unlock-gated storage for short-lived material such as
	// the bearer token and the signing key id pointer.
	TierStandard Tier = iota
	// TierProtected is presence-gated storage for long-lived secrets: the
	// refresh token and private key material.
	TierProtected
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierProtected:
		return "protected"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Well-known keys used across the credential lifecycle. The standard tier
// holds KeyBearerToken, KeyRSAKeyID and KeyBasicMode; the protected tier
// holds KeyRefreshToken and raw private key bytes under each key id.
const (
	KeyBearerToken  = "bearer_token"
	KeyRefreshToken = "refresh_token"
	KeyRSAKeyID     = "rsa_key_id"
	KeyBasicMode    = "basic_auth"
)

var (
	// ErrNotFound is returned when no value exists under the requested key.
	// Distinct from the failure sentinels below so callers can tell "not
	// logged in" from "could not read storage".
	ErrNotFound = errors.New("store: value not found")

	// ErrPresenceDenied is returned when user-presence verification for a
	// protected-tier access fails, is cancelled, or is unavailable.
	ErrPresenceDenied = errors.New("store: user presence verification denied")

	// ErrUnavailable is returned when the standard tier cannot be accessed,
	// e.g. the system keyring is locked.
	ErrUnavailable = errors.New("store: standard tier unavailable")

	// ErrEnclaveUnavailable is returned when the protected tier cannot be
	// constructed at all, e.g. no stable service identifier was configured.
	ErrEnclaveUnavailable = errors.New("store: protected tier unavailable")
)

// Store is the two-tier secure storage contract. Implementations must
// serialize conflicting writers; values are opaque byte strings.
type Store interface {
	Get(ctx context.Context, tier Tier, key string) ([]byte, error)
	Set(ctx context.Context, tier Tier, key string, value []byte) error
	Delete(ctx context.Context, tier Tier, key string) error
	// Wipe removes every key in the tier. Missing keys are not an error.
	Wipe(ctx context.Context, tier Tier) error
}

// Prompter performs interactive user-presence verification for
// protected-tier access. Confirm blocks until the platform's verification
// resolves: accept (true), deny (false), or an error for timeout or an
// unavailable verifier.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, prompt string) (bool, error)

func (f PrompterFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Backend is a single-tier key/value store. Dual composes two of these into
// a Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Wipe(ctx context.Context) error
}

// Dual composes a standard-tier backend and a protected-tier backend behind
// the Store interface. Every protected-tier access is gated by the Prompter
// using the configured prompt string.
type Dual struct {
	standard  Backend
	protected Backend
	prompter  Prompter
	prompt    string
}

// NewDual builds a Store from the two backends. protected may be nil, in
// which case protected-tier operations fail with ErrEnclaveUnavailable.
func NewDual(standard, protected Backend, prompter Prompter, prompt string) *Dual {
	return &Dual{standard: standard, protected: protected, prompter: prompter, prompt: prompt}
}

// backend resolves the tier. Presence verification applies to protected-tier
// reads and writes only; deletes and wipes proceed unprompted so that
// deauthentication cannot be blocked by a denied prompt.
func (d *Dual) backend(ctx context.Context, tier Tier, gated bool) (Backend, error) {
	switch tier {
	case TierStandard:
		if d.standard == nil {
			return nil, ErrUnavailable
		}
		return d.standard, nil
	case TierProtected:
		if d.protected == nil {
			return nil, ErrEnclaveUnavailable
		}
		if gated {
			if err := d.verifyPresence(ctx); err != nil {
				return nil, err
			}
		}
		return d.protected, nil
	default:
		return nil, fmt.Errorf("store: unknown tier %d", int(tier))
	}
}

func (d *Dual) verifyPresence(ctx context.Context) error {
	if d.prompter == nil {
		return ErrPresenceDenied
	}
	ok, err := d.prompter.Confirm(ctx, d.prompt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPresenceDenied, err)
	}
	if !ok {
		return ErrPresenceDenied
	}
	return nil
}

func (d *Dual) Get(ctx context.Context, tier Tier, key string) ([]byte, error) {
	b, err := d.backend(ctx, tier, true)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, key)
}

func (d *Dual) Set(ctx context.Context, tier Tier, key string, value []byte) error {
	b, err := d.backend(ctx, tier, true)
	if err != nil {
		return err
	}
	return b.Set(ctx, key, value)
}

func (d *Dual) Delete(ctx context.Context, tier Tier, key string) error {
	b, err := d.backend(ctx, tier, false)
	if err != nil {
		return err
	}
	return b.Delete(ctx, key)
}

func (d *Dual) Wipe(ctx context.Context, tier Tier) error {
	b, err := d.backend(ctx, tier, false)
	if err != nil {
		return err
	}
	return b.Wipe(ctx)
}

// Close releases backend resources, e.g. the vault's file lock. Backends
// without resources to release are skipped.
func (d *Dual) Close() error {
	var errs []error
	for _, b := range []Backend{d.standard, d.protected} {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
