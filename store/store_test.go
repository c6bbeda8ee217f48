package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDualRoutesTiers(t *testing.T) {
	standard := NewMemory()
	protected := NewMemory()
	d := NewDual(standard, protected, AllowAll(), "test")
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, TierStandard, KeyBearerToken, []byte("bearer")))
	require.NoError(t, d.Set(ctx, TierProtected, KeyRefreshToken, []byte("refresh")))

	assert.Equal(t, 1, standard.Len())
	assert.Equal(t, 1, protected.Len())

	got, err := d.Get(ctx, TierStandard, KeyBearerToken)
	require.NoError(t, err)
	assert.Equal(t, "bearer", string(got))

	_, err = d.Get(ctx, TierStandard, KeyRefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDualPresenceGating(t *testing.T) {
	var prompts atomic.Int64
	prompter := PrompterFunc(func(ctx context.Context, prompt string) (bool, error) {
		prompts.Add(1)
		assert.Equal(t, "unlock please", prompt)
		return true, nil
	})
	d := NewDual(NewMemory(), NewMemory(), prompter, "unlock please")
	ctx := context.Background()

	// Standard-tier access never prompts.
	require.NoError(t, d.Set(ctx, TierStandard, "k", []byte("v")))
	_, err := d.Get(ctx, TierStandard, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), prompts.Load())

	// Protected-tier reads and writes prompt once each.
	require.NoError(t, d.Set(ctx, TierProtected, "k", []byte("v")))
	_, err = d.Get(ctx, TierProtected, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), prompts.Load())

	// Deletes and wipes proceed without a prompt so deauthentication can
	// never be blocked.
	require.NoError(t, d.Delete(ctx, TierProtected, "k"))
	require.NoError(t, d.Wipe(ctx, TierProtected))
	assert.Equal(t, int64(2), prompts.Load())
}

func TestDualPresenceDenied(t *testing.T) {
	d := NewDual(NewMemory(), NewMemory(), DenyAll(), "test")
	ctx := context.Background()

	err := d.Set(ctx, TierProtected, "k", []byte("v"))
	assert.ErrorIs(t, err, ErrPresenceDenied)

	_, err = d.Get(ctx, TierProtected, "k")
	assert.ErrorIs(t, err, ErrPresenceDenied)
}

func TestDualPrompterError(t *testing.T) {
	cause := errors.New("verifier offline")
	prompter := PrompterFunc(func(ctx context.Context, prompt string) (bool, error) {
		return false, cause
	})
	d := NewDual(NewMemory(), NewMemory(), prompter, "test")

	_, err := d.Get(context.Background(), TierProtected, "k")
	assert.ErrorIs(t, err, ErrPresenceDenied)
	assert.ErrorIs(t, err, cause)
}

func TestDualNilPrompter(t *testing.T) {
	d := NewDual(NewMemory(), NewMemory(), nil, "test")

	_, err := d.Get(context.Background(), TierProtected, "k")
	assert.ErrorIs(t, err, ErrPresenceDenied)
}

func TestDualMissingBackends(t *testing.T) {
	d := NewDual(nil, nil, AllowAll(), "test")
	ctx := context.Background()

	_, err := d.Get(ctx, TierStandard, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = d.Get(ctx, TierProtected, "k")
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)

	err = d.Wipe(ctx, TierProtected)
	assert.ErrorIs(t, err, ErrEnclaveUnavailable)
}

func TestMemoryBackend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	require.NoError(t, m.Set(ctx, "k", []byte("v2")))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	// Mutating the returned slice must not affect stored state.
	got[0] = 'X'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(again))

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"), "delete is idempotent")

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	require.NoError(t, m.Wipe(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "standard", TierStandard.String())
	assert.Equal(t, "protected", TierProtected.String())
	assert.Equal(t, "tier(9)", Tier(9).String())
}
