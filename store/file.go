package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockTimeout bounds how long a File operation waits for the cross-process
// lock. On timeout the operation proceeds without it; a brief race window is
// preferred over hanging when another process crashed while holding the lock.
const lockTimeout = 100 * time.Millisecond

// File is a standard-tier fallback backend for systems without a usable
// keyring. Values are kept in a single JSON file with 0600 permissions,
// written atomically and guarded by a flock against concurrent processes.
//
// File offers no secrecy beyond filesystem permissions; callers should warn
// when falling back to it.
type File struct {
	path string

	mu sync.Mutex
}

// NewFile creates a file backend rooted at dir.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, ErrEnclaveUnavailable
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &File{path: filepath.Join(dir, "credentials.json")}, nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	encoded, ok := all[key]
	if !ok {
		return nil, ErrNotFound
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func (f *File) Set(ctx context.Context, key string, value []byte) error {
	return f.mutate(ctx, func(all map[string]string) {
		all[key] = base64.StdEncoding.EncodeToString(value)
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.mutate(ctx, func(all map[string]string) {
		delete(all, key)
	})
}

func (f *File) Wipe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock := f.acquireLock(ctx)
	defer release(lock)

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *File) mutate(ctx context.Context, apply func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock := f.acquireLock(ctx)
	defer release(lock)

	all, err := f.load()
	if err != nil {
		return err
	}
	apply(all)
	return f.save(all)
}

func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	var all map[string]string
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (f *File) save(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write via randomized temp file then rename.
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Unix rename replaces the destination atomically. Windows rename fails
	// when the destination exists, so remove and retry there.
	if err := os.Rename(tmpPath, f.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(f.path)
			return os.Rename(tmpPath, f.path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// acquireLock takes the cross-process lock, or returns nil on timeout
// (fail-open). The in-process mutex is already held.
func (f *File) acquireLock(ctx context.Context) *flock.Flock {
	fl := flock.New(f.path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil || !locked {
		return nil
	}
	return fl
}

func release(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}
