package store

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func testSealKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, chacha20poly1305.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func openTestVault(t *testing.T, path string, key []byte) *Vault {
	t.Helper()
	v, err := NewVault(path, key)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	v := openTestVault(t, filepath.Join(t.TempDir(), "vault.db"), testSealKey(t))
	ctx := context.Background()

	_, err := v.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Set(ctx, "k", []byte("secret")))
	got, err := v.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(got))

	require.NoError(t, v.Delete(ctx, "k"))
	_, err = v.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultValuesSealedOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	v := openTestVault(t, path, testSealKey(t))
	ctx := context.Background()

	secret := []byte("super-secret-refresh-token")
	require.NoError(t, v.Set(ctx, "k", secret))
	require.NoError(t, v.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), string(secret))
}

func TestVaultWrongKeyFailsToUnseal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	ctx := context.Background()

	v := openTestVault(t, path, testSealKey(t))
	require.NoError(t, v.Set(ctx, "k", []byte("secret")))
	require.NoError(t, v.Close())

	other, err := NewVault(path, testSealKey(t))
	require.NoError(t, err)
	defer other.Close()

	_, err = other.Get(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unseal")
}

func TestVaultWipe(t *testing.T) {
	v := openTestVault(t, filepath.Join(t.TempDir(), "vault.db"), testSealKey(t))
	ctx := context.Background()

	require.NoError(t, v.Set(ctx, "a", []byte("1")))
	require.NoError(t, v.Set(ctx, "b", []byte("2")))

	require.NoError(t, v.Wipe(ctx))
	_, err := v.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	// The vault stays usable after a wipe.
	require.NoError(t, v.Set(ctx, "c", []byte("3")))
	got, err := v.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", string(got))
}

func TestVaultKeySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	_, err := NewVault(path, []byte("short"))
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)

	_, err = NewVault("", testSealKey(t))
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)
}

func TestLoadOrCreateSealKey(t *testing.T) {
	standard := NewMemory()
	ctx := context.Background()

	first, err := LoadOrCreateSealKey(ctx, standard)
	require.NoError(t, err)
	assert.Len(t, first, chacha20poly1305.KeySize)

	second, err := LoadOrCreateSealKey(ctx, standard)
	require.NoError(t, err)
	assert.Equal(t, first, second, "seal key must be stable across opens")
}

func TestLoadOrCreateSealKeyRejectsCorruptRecord(t *testing.T) {
	standard := NewMemory()
	ctx := context.Background()
	require.NoError(t, standard.Set(ctx, sealKeyName, []byte("truncated")))

	_, err := LoadOrCreateSealKey(ctx, standard)
	require.Error(t, err)
}

func TestOpenBuildsWorkingStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	d, err := Open(ctx, Options{
		Service:   "authkit-test",
		Dir:       dir,
		Prompt:    "test",
		Prompter:  AllowAll(),
		NoKeyring: true,
	})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Set(ctx, TierStandard, KeyBearerToken, []byte("bearer")))
	require.NoError(t, d.Set(ctx, TierProtected, KeyRefreshToken, []byte("refresh")))

	got, err := d.Get(ctx, TierProtected, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", string(got))
}

func TestDualCloseReleasesVault(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	opts := Options{
		Service:   "authkit-test",
		Dir:       dir,
		Prompt:    "test",
		Prompter:  AllowAll(),
		NoKeyring: true,
	}

	first, err := Open(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, TierProtected, KeyRefreshToken, []byte("refresh")))
	require.NoError(t, first.Close())

	// Close released the vault's file lock, so a second open over the same
	// directory succeeds and reads the sealed value back.
	second, err := Open(ctx, opts)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, TierProtected, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", string(got))
}

func TestOpenRequiresService(t *testing.T) {
	_, err := Open(context.Background(), Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)
}
