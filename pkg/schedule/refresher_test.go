package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

var refreshNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeConnections struct {
	mu        sync.Mutex
	records   map[string]*tiktok.ConnectionRecord
	listErr   error
	failFor   map[string]error
	refreshed []string
	creds     []tiktok.Credentials
}

func (f *fakeConnections) List(ctx context.Context) (map[string]*tiktok.ConnectionRecord, error) {
	return f.records, f.listErr
}

func (f *fakeConnections) Refresh(ctx context.Context, platform string, creds tiktok.Credentials) (*tiktok.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, creds)
	if err := f.failFor[platform]; err != nil {
		return nil, err
	}
	f.refreshed = append(f.refreshed, platform)
	return &tiktok.TokenBundle{}, nil
}

func expiringAt(status string, expiry time.Time) *tiktok.ConnectionRecord {
	return &tiktok.ConnectionRecord{Status: status, TokenExpiry: &expiry}
}

func TestTokenRefresher_RunOnce(t *testing.T) {
	creds := tiktok.Credentials{AppID: "app", ClientSecret: "secret"}

	tests := []struct {
		name      string
		record    *tiktok.ConnectionRecord
		refreshed bool
	}{
		{"expires inside window", expiringAt(tiktok.StatusConnected, refreshNow.Add(30*time.Minute)), true},
		{"already expired", expiringAt(tiktok.StatusConnected, refreshNow.Add(-time.Minute)), true},
		{"expires after window", expiringAt(tiktok.StatusConnected, refreshNow.Add(2*time.Hour)), false},
		{"disconnected", expiringAt(tiktok.StatusDisconnected, refreshNow), false},
		{"no expiry", &tiktok.ConnectionRecord{Status: tiktok.StatusConnected}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns := &fakeConnections{records: map[string]*tiktok.ConnectionRecord{tiktok.Platform: tt.record}}
			r, err := NewTokenRefresher(conns, creds, "*/15 * * * *", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
			require.NoError(t, err)

			result, err := r.RunOnce(context.Background())
			require.NoError(t, err)

			if tt.refreshed {
				assert.Equal(t, []string{tiktok.Platform}, result.Refreshed)
				assert.Equal(t, []tiktok.Credentials{creds}, conns.creds)
			} else {
				assert.Empty(t, result.Refreshed)
				assert.Equal(t, []string{tiktok.Platform}, result.Skipped)
				assert.Empty(t, conns.creds)
			}
		})
	}
}

func TestTokenRefresher_OtherPlatformsSkipped(t *testing.T) {
	conns := &fakeConnections{records: map[string]*tiktok.ConnectionRecord{
		"meta":          expiringAt(tiktok.StatusConnected, refreshNow),
		"google":        expiringAt(tiktok.StatusConnected, refreshNow),
		tiktok.Platform: expiringAt(tiktok.StatusConnected, refreshNow),
	}}
	r, err := NewTokenRefresher(conns, tiktok.Credentials{}, "@hourly", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
	require.NoError(t, err)

	result, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{tiktok.Platform}, result.Refreshed)
	assert.Equal(t, []string{"google", "meta"}, result.Skipped)
}

func TestTokenRefresher_FailureRecorded(t *testing.T) {
	refreshErr := errors.New("refresh token revoked")
	conns := &fakeConnections{
		records: map[string]*tiktok.ConnectionRecord{tiktok.Platform: expiringAt(tiktok.StatusConnected, refreshNow)},
		failFor: map[string]error{tiktok.Platform: refreshErr},
	}
	r, err := NewTokenRefresher(conns, tiktok.Credentials{}, "@hourly", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
	require.NoError(t, err)

	result, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Refreshed)
	assert.Equal(t, refreshErr, result.Failed[tiktok.Platform])
}

func TestTokenRefresher_ListError(t *testing.T) {
	conns := &fakeConnections{listErr: errors.New("store unavailable")}
	r, err := NewTokenRefresher(conns, tiktok.Credentials{}, "@hourly", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestNewTokenRefresher_Validation(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(refreshNow)

	_, err := NewTokenRefresher(&fakeConnections{}, tiktok.Credentials{}, "every now and then", time.Hour, clk)
	assert.Error(t, err)

	_, err = NewTokenRefresher(&fakeConnections{}, tiktok.Credentials{}, "@hourly", 0, clk)
	assert.Error(t, err)
}

func TestTokenRefresher_StartStop(t *testing.T) {
	r, err := NewTokenRefresher(&fakeConnections{}, tiktok.Credentials{}, "@hourly", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
	require.NoError(t, err)

	require.NoError(t, r.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Stop(ctx))

	// Restart after stop, as on regaining leadership
	require.NoError(t, r.Start())
	assert.NoError(t, r.Stop(ctx))
}
