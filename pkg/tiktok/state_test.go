package tiktok

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

func assertStateCleared(t *testing.T, store storage.Store) {
	t.Helper()
	_, err := store.Get(context.Background(), StateStorageKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "state should be removed, got %v", err)
}

func TestStateManager_ValidOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	manager := NewStateManager(store, newTestCipher(t), newTestClock())

	state, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	assert.True(t, manager.ValidateState(ctx, state))
	assertStateCleared(t, store)

	// Replay within the window fails
	assert.False(t, manager.ValidateState(ctx, state))
}

func TestStateManager_StoredEncrypted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	manager := NewStateManager(store, newTestCipher(t), newTestClock())

	state, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)

	raw, err := store.Get(ctx, StateStorageKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, state)
}

func TestStateManager_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"fresh", 0, true},
		{"just inside window", StateExpiry - time.Millisecond, true},
		{"at expiry", StateExpiry, false},
		{"long expired", time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			clk := newTestClock()
			manager := NewStateManager(store, newTestCipher(t), clk)

			state, err := manager.GenerateAuthState(ctx)
			require.NoError(t, err)

			clk.SetTime(testNow.Add(tt.elapsed))
			assert.Equal(t, tt.want, manager.ValidateState(ctx, state))
			assertStateCleared(t, store)
		})
	}
}

func TestStateManager_Mismatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	manager := NewStateManager(store, newTestCipher(t), newTestClock())

	state, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)

	assert.False(t, manager.ValidateState(ctx, "attacker-supplied"))
	assertStateCleared(t, store)

	// The genuine state was consumed by the failed attempt
	assert.False(t, manager.ValidateState(ctx, state))
}

func TestStateManager_Tampered(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	manager := NewStateManager(store, newTestCipher(t), newTestClock())

	state, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)

	raw, err := store.Get(ctx, StateStorageKey)
	require.NoError(t, err)
	tampered := []byte(raw)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	require.NoError(t, store.Set(ctx, StateStorageKey, string(tampered)))

	assert.False(t, manager.ValidateState(ctx, state))
	assertStateCleared(t, store)
}

func TestStateManager_Garbage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	manager := NewStateManager(store, newTestCipher(t), newTestClock())

	require.NoError(t, store.Set(ctx, StateStorageKey, "not-a-ciphertext"))

	assert.False(t, manager.ValidateState(ctx, "anything"))
	assertStateCleared(t, store)
}

func TestStateManager_Absent(t *testing.T) {
	manager := NewStateManager(storage.NewMemoryStore(), newTestCipher(t), newTestClock())
	assert.False(t, manager.ValidateState(context.Background(), "anything"))
}

func TestStateManager_LastGenerateWins(t *testing.T) {
	ctx := context.Background()
	manager := NewStateManager(storage.NewMemoryStore(), newTestCipher(t), newTestClock())

	first, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)
	second, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, manager.ValidateState(ctx, first))

	third, err := manager.GenerateAuthState(ctx)
	require.NoError(t, err)
	assert.True(t, manager.ValidateState(ctx, third))
}
