package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

func TestDefaultLeaderElectionConfig(t *testing.T) {
	cfg := DefaultLeaderElectionConfig("adauth", "")
	assert.Equal(t, "adplatform-auth-refresh", cfg.LeaseName)
	assert.Equal(t, "adauth", cfg.Namespace)
	assert.Greater(t, cfg.LeaseDuration, cfg.RenewDeadline)
	assert.Greater(t, cfg.RenewDeadline, cfg.RetryPeriod)
}

func TestNewLeaderElector_UniqueIdentity(t *testing.T) {
	client := fake.NewSimpleClientset()
	cfg := DefaultLeaderElectionConfig("adauth", "lease")

	a := NewLeaderElector(client, cfg)
	b := NewLeaderElector(client, cfg)
	assert.NotEmpty(t, a.Identity())
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestLeaderRefresher_AcquiresLease(t *testing.T) {
	refresher, err := NewTokenRefresher(&fakeConnections{records: map[string]*tiktok.ConnectionRecord{}},
		tiktok.Credentials{}, "*/15 * * * *", time.Hour, testingclock.NewFakePassiveClock(refreshNow))
	require.NoError(t, err)

	client := fake.NewSimpleClientset()
	cfg := DefaultLeaderElectionConfig("adauth", "refresh-lease")
	lr := NewLeaderRefresher(refresher, client, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lr.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		lease, err := client.CoordinationV1().Leases("adauth").Get(context.Background(), "refresh-lease", metav1.GetOptions{})
		return err == nil && lease.Spec.HolderIdentity != nil && *lease.Spec.HolderIdentity == lr.elector.Identity()
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("leader refresher did not stop after cancel")
	}
}
