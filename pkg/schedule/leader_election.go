package schedule

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

// LeaderElectionConfig contains configuration for leader election
type LeaderElectionConfig struct {
	// LeaseDuration is the duration that non-leader candidates will wait to force acquire leadership
	LeaseDuration time.Duration
	// RenewDeadline is the duration that the acting leader will retry refreshing leadership before giving up
	RenewDeadline time.Duration
	// RetryPeriod is the duration between tries of actions
	RetryPeriod time.Duration
	LeaseName   string
	Namespace   string
}

// DefaultLeaderElectionConfig returns the default leader election configuration
func DefaultLeaderElectionConfig(namespace, leaseName string) LeaderElectionConfig {
	if leaseName == "" {
		leaseName = "adplatform-auth-refresh"
	}
	return LeaderElectionConfig{
		LeaseDuration: 15 * time.Second,
		RenewDeadline: 10 * time.Second,
		RetryPeriod:   2 * time.Second,
		LeaseName:     leaseName,
		Namespace:     namespace,
	}
}

// LeaderElector manages a Lease so that one replica runs the refresher
type LeaderElector struct {
	client   kubernetes.Interface
	config   LeaderElectionConfig
	identity string
}

// NewLeaderElector creates a new LeaderElector
func NewLeaderElector(client kubernetes.Interface, config LeaderElectionConfig) *LeaderElector {
	hostname, _ := os.Hostname()
	identity := hostname + "_" + uuid.New().String()[:8]

	return &LeaderElector{
		client:   client,
		config:   config,
		identity: identity,
	}
}

// Run blocks in the election loop until ctx is cancelled
func (l *LeaderElector) Run(ctx context.Context, onStartedLeading func(ctx context.Context), onStoppedLeading func()) {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      l.config.LeaseName,
			Namespace: l.config.Namespace,
		},
		Client: l.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: l.identity,
		},
	}

	log.Printf("[LEADER_ELECTION] Starting leader election for %s/%s with identity %s",
		l.config.Namespace, l.config.LeaseName, l.identity)

	leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
		Lock:            lock,
		ReleaseOnCancel: true,
		LeaseDuration:   l.config.LeaseDuration,
		RenewDeadline:   l.config.RenewDeadline,
		RetryPeriod:     l.config.RetryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				log.Printf("[LEADER_ELECTION] Became leader")
				onStartedLeading(ctx)
			},
			OnStoppedLeading: func() {
				log.Printf("[LEADER_ELECTION] Lost leadership")
				if onStoppedLeading != nil {
					onStoppedLeading()
				}
			},
			OnNewLeader: func(identity string) {
				if identity != l.identity {
					log.Printf("[LEADER_ELECTION] New leader elected: %s", identity)
				}
			},
		},
	})
}

// Identity returns the identity of this elector
func (l *LeaderElector) Identity() string {
	return l.identity
}

// LeaderRefresher runs a TokenRefresher only while holding the lease
type LeaderRefresher struct {
	refresher *TokenRefresher
	elector   *LeaderElector
}

// NewLeaderRefresher creates a new LeaderRefresher
func NewLeaderRefresher(refresher *TokenRefresher, client kubernetes.Interface, electionConfig LeaderElectionConfig) *LeaderRefresher {
	return &LeaderRefresher{
		refresher: refresher,
		elector:   NewLeaderElector(client, electionConfig),
	}
}

// Run blocks until ctx is cancelled
func (lr *LeaderRefresher) Run(ctx context.Context) {
	lr.elector.Run(ctx,
		func(leaderCtx context.Context) {
			if err := lr.refresher.Start(); err != nil {
				log.Printf("[LEADER_ELECTION] Failed to start token refresher: %v", err)
			}
		},
		func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := lr.refresher.Stop(stopCtx); err != nil {
				log.Printf("[LEADER_ELECTION] %v", err)
			}
		},
	)
}
