package tiktok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var testCreds = Credentials{
	AppID:        "7123456789",
	ClientSecret: "client-secret",
	RedirectURI:  "https://dashboard.example.com/tiktok/callback",
}

func newTestCipher(t *testing.T) crypto.Cipher {
	t.Helper()
	c, err := crypto.NewAESCipherFromSecret("test-encryption-secret")
	require.NoError(t, err)
	return c
}

func newTestClock() *testingclock.FakePassiveClock {
	return testingclock.NewFakePassiveClock(testNow)
}

func decrypt(t *testing.T, c crypto.Cipher, ciphertext string) string {
	t.Helper()
	plaintext, err := c.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	return plaintext
}

// newTokenServer serves status and body for every request and records the last request body
func newTokenServer(t *testing.T, status int, body string, received *map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if received != nil {
			_ = json.NewDecoder(r.Body).Decode(received)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func successBody(access, refresh string, expiresIn int) string {
	data, _ := json.Marshal(map[string]interface{}{
		"code":    0,
		"message": "OK",
		"data": map[string]interface{}{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    expiresIn,
		},
	})
	return string(data)
}

func readConnections(t *testing.T, store storage.Store) string {
	t.Helper()
	raw, err := store.Get(context.Background(), ConnectionsStorageKey)
	require.NoError(t, err)
	return raw
}

// stubExchanger returns a fixed result
type stubExchanger struct {
	bundle *TokenBundle
	err    error
	calls  int
}

func (s *stubExchanger) ExchangeToken(ctx context.Context, code string, creds Credentials) (*TokenBundle, error) {
	s.calls++
	return s.bundle, s.err
}

func (s *stubExchanger) RefreshToken(ctx context.Context, refreshToken string, creds Credentials) (*TokenBundle, error) {
	s.calls++
	return s.bundle, s.err
}
