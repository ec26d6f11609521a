package schedule

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// Connections is the part of tiktok.ConnectionService the refresher drives
type Connections interface {
	List(ctx context.Context) (map[string]*tiktok.ConnectionRecord, error)
	Refresh(ctx context.Context, platform string, creds tiktok.Credentials) (*tiktok.TokenBundle, error)
}

// RunResult summarizes one refresh pass
type RunResult struct {
	Refreshed []string
	Skipped   []string
	Failed    map[string]error
}

// TokenRefresher periodically refreshes connections whose tokens expire
// within a window. A failed refresh is left for the next run.
type TokenRefresher struct {
	connections Connections
	creds       tiktok.Credentials
	schedule    string
	window      time.Duration
	clock       clock.PassiveClock
	parser      *CronParser
	cron        *cron.Cron

	runMu sync.Mutex
}

// NewTokenRefresher creates a TokenRefresher running on the cron schedule
func NewTokenRefresher(connections Connections, creds tiktok.Credentials, schedule string, window time.Duration, clk clock.PassiveClock) (*TokenRefresher, error) {
	parser := NewCronParser()
	if err := parser.Validate(schedule); err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, fmt.Errorf("refresh window must be positive")
	}

	r := &TokenRefresher{
		connections: connections,
		creds:       creds,
		schedule:    schedule,
		window:      window,
		clock:       clk,
		parser:      parser,
		cron:        cron.New(cron.WithParser(parser.parser)),
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("failed to schedule token refresh: %w", err)
	}
	return r, nil
}

// Start starts the cron runner. It may be called again after Stop.
func (r *TokenRefresher) Start() error {
	r.cron.Start()

	if next, err := r.parser.Next(r.schedule, r.clock.Now()); err == nil {
		log.Printf("[REFRESH] Token refresher started (schedule: %s, window: %s, next run: %s)",
			r.schedule, r.window, next.Format(time.RFC3339))
	}
	return nil
}

// Stop stops the cron runner and waits for a running job until ctx is done
func (r *TokenRefresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		log.Printf("[REFRESH] Token refresher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("token refresher did not stop: %w", ctx.Err())
	}
}

func (r *TokenRefresher) run() {
	result, err := r.RunOnce(context.Background())
	if err != nil {
		log.Printf("[REFRESH] Refresh run failed: %v", err)
		return
	}
	if len(result.Refreshed) > 0 || len(result.Failed) > 0 {
		log.Printf("[REFRESH] Refresh run complete: refreshed=%d failed=%d skipped=%d",
			len(result.Refreshed), len(result.Failed), len(result.Skipped))
	}
}

// RunOnce refreshes every connected TikTok record expiring within the window.
// Runs do not overlap.
func (r *TokenRefresher) RunOnce(ctx context.Context) (*RunResult, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	records, err := r.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	result := &RunResult{Failed: map[string]error{}}
	now := r.clock.Now()

	for _, platform := range tiktok.Platforms(records) {
		record := records[platform]
		if platform != tiktok.Platform || !record.Connected() || !record.ExpiresWithin(now, r.window) {
			result.Skipped = append(result.Skipped, platform)
			continue
		}

		if _, err := r.connections.Refresh(ctx, platform, r.creds); err != nil {
			log.Printf("[REFRESH] Failed to refresh %s: %v", platform, err)
			result.Failed[platform] = err
			continue
		}
		result.Refreshed = append(result.Refreshed, platform)
	}

	sort.Strings(result.Skipped)
	return result, nil
}
