package tiktok

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

func TestAuthURL(t *testing.T) {
	ctx := context.Background()
	states := NewStateManager(storage.NewMemoryStore(), newTestCipher(t), newTestClock())
	builder := NewAuthURLBuilder(states, "", nil)

	raw, err := builder.AuthURL(ctx, testCreds.AppID, testCreds.RedirectURI)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "business-api.tiktok.com", u.Host)
	assert.Equal(t, "/portal/auth", u.Path)

	q := u.Query()
	assert.Equal(t, testCreds.AppID, q.Get("app_id"))
	assert.Equal(t, testCreds.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "user.info,ad.read,ad.write", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))

	// The embedded state is the pending one
	assert.True(t, states.ValidateState(ctx, q.Get("state")))
}

func TestAuthURL_CustomScopes(t *testing.T) {
	states := NewStateManager(storage.NewMemoryStore(), newTestCipher(t), newTestClock())
	builder := NewAuthURLBuilder(states, "https://auth.example.com/authorize", []string{"ad.read"})

	raw, err := builder.AuthURL(context.Background(), "app", "")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "ad.read", u.Query().Get("scope"))
}

func TestAuthURL_RequiresAppID(t *testing.T) {
	store := storage.NewMemoryStore()
	states := NewStateManager(store, newTestCipher(t), newTestClock())

	_, err := NewAuthURLBuilder(states, "", nil).AuthURL(context.Background(), "", testCreds.RedirectURI)
	assert.Error(t, err)

	// No state is issued for a rejected request
	assert.False(t, states.ValidateState(context.Background(), "x"))
	_, getErr := store.Get(context.Background(), StateStorageKey)
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}
