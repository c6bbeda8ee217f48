package store

import (
	"context"
	"path/filepath"
)

// Options configures Open.
type Options struct {
	// Service is the stable identifier namespacing keyring entries and the
	// vault file. Required.
	Service string
	// Dir is the directory for the vault file and, when the system keyring
	// is unavailable, the plaintext fallback file. Required.
	Dir string
	// Prompt is shown by the Prompter on every protected-tier read or write.
	Prompt string
	// Prompter performs user-presence verification. Required for any
	// protected-tier access to succeed.
	Prompter Prompter
	// NoKeyring forces the file fallback even when a keyring is available,
	// mainly for tests and headless environments.
	NoKeyring bool
}

// Open builds the default two-tier store: the OS keyring as the standard
// tier (falling back to a locked JSON file when no keyring is usable) and a
// sealed bbolt vault as the protected tier.
func Open(ctx context.Context, opts Options) (*Dual, error) {
	if opts.Service == "" {
		return nil, ErrEnclaveUnavailable
	}

	var standard Backend
	if !opts.NoKeyring && Available(opts.Service) {
		kr, err := NewKeyring(opts.Service)
		if err != nil {
			return nil, err
		}
		standard = kr
	} else {
		f, err := NewFile(opts.Dir)
		if err != nil {
			return nil, err
		}
		standard = f
	}

	sealKey, err := LoadOrCreateSealKey(ctx, standard)
	if err != nil {
		return nil, err
	}
	vault, err := NewVault(filepath.Join(opts.Dir, "vault.db"), sealKey)
	if err != nil {
		return nil, err
	}

	return NewDual(standard, vault, opts.Prompter, opts.Prompt), nil
}
