package tiktok

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

// StateManager issues and checks the single-use anti-forgery state of the
// authorization redirect. At most one state is pending at a time.
type StateManager struct {
	store  storage.Store
	cipher crypto.Cipher
	clock  clock.PassiveClock
	expiry time.Duration
}

// NewStateManager creates a StateManager persisting encrypted state in store
func NewStateManager(store storage.Store, cipher crypto.Cipher, clk clock.PassiveClock) *StateManager {
	return &StateManager{
		store:  store,
		cipher: cipher,
		clock:  clk,
		expiry: StateExpiry,
	}
}

// GenerateAuthState creates a fresh state, replacing any pending one, and
// returns its raw value for the authorization URL
func (m *StateManager) GenerateAuthState(ctx context.Context) (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	payload, err := json.Marshal(AuthState{
		Value:     value.String(),
		Timestamp: m.clock.Now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	encrypted, err := m.cipher.Encrypt(ctx, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt state: %w", err)
	}

	if err := m.store.Set(ctx, StateStorageKey, encrypted); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return value.String(), nil
}

// ValidateState reports whether candidate matches the pending state and is
// younger than the expiry. The pending state is consumed by every call that
// finds one, whatever the outcome. Unreadable state is treated as invalid.
func (m *StateManager) ValidateState(ctx context.Context, candidate string) bool {
	encrypted, err := m.store.Get(ctx, StateStorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[STATE] Failed to read state: %v", err)
			m.clear(ctx)
		}
		return false
	}
	defer m.clear(ctx)

	decrypted, err := m.cipher.Decrypt(ctx, encrypted)
	if err != nil {
		log.Printf("[STATE] State validation error: %v", err)
		return false
	}

	var state AuthState
	if err := json.Unmarshal([]byte(decrypted), &state); err != nil {
		log.Printf("[STATE] State validation error: %v", err)
		return false
	}

	matches := subtle.ConstantTimeCompare([]byte(state.Value), []byte(candidate)) == 1
	elapsed := m.clock.Since(time.UnixMilli(state.Timestamp))

	return matches && elapsed < m.expiry
}

func (m *StateManager) clear(ctx context.Context) {
	if err := m.store.Delete(ctx, StateStorageKey); err != nil {
		log.Printf("[STATE] Failed to clear state: %v", err)
	}
}
