package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

// indexKey tracks which keys this backend owns. The OS keyring has no list
// operation, so Wipe needs its own inventory.
const indexKey = "__index__"

// Keyring is a standard-tier backend over the operating system keyring.
// Entries are namespaced under the configured service identifier.
type Keyring struct {
	service string

	mu sync.Mutex
}

// NewKeyring creates a keyring backend. service must be a stable, non-empty
// identifier (typically the application bundle or binary name).
func NewKeyring(service string) (*Keyring, error) {
	if service == "" {
		return nil, ErrEnclaveUnavailable
	}
	return &Keyring{service: service}, nil
}

// Available probes whether the system keyring accepts writes. Callers use
// this to decide between Keyring and the File fallback.
func Available(service string) bool {
	probe := service + "::probe"
	if err := keyring.Set(service, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(service, probe)
	return true
}

func (k *Keyring) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	val, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return []byte(val), nil
}

func (k *Keyring) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(k.service, key, string(value)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return k.updateIndex(func(keys map[string]bool) { keys[key] = true })
}

func (k *Keyring) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return k.updateIndex(func(keys map[string]bool) { delete(keys, key) })
}

func (k *Keyring) Wipe(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.indexedKeys() {
		if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	if err := keyring.Delete(k.service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// indexedKeys returns the owned keys in deterministic order. An unreadable
// or corrupt index yields an empty inventory rather than an error; Wipe is
// best-effort by contract.
func (k *Keyring) indexedKeys() []string {
	raw, err := keyring.Get(k.service, indexKey)
	if err != nil {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil
	}
	sort.Strings(keys)
	return keys
}

func (k *Keyring) updateIndex(mutate func(map[string]bool)) error {
	set := make(map[string]bool)
	for _, key := range k.indexedKeys() {
		set[key] = true
	}
	mutate(set)

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, indexKey, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
