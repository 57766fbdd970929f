package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
)

// Sweeper drops idle in-process rate limit windows.
type Sweeper interface {
	Sweep(now time.Time) int
}

// HousekeepingService periodically deletes invites that expired long ago and
// sweeps the in-memory rate limiter when one is in use.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Retention is how long unaccepted invites are kept after expiry so
	// owners can still see them listed.
	Retention time.Duration

	// Sweeper is optional.
	Sweeper Sweeper

	Now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(
	store store.Store,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background cleanup worker.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now()

	deleted, err := s.Store.Invites().DeleteExpiredInvites(ctx, now.Add(-s.Retention))
	if err != nil {
		s.Logger.Error("failed to delete expired invites", "error", err)
	} else if deleted > 0 {
		s.Logger.Info("deleted expired invites", "count", deleted)
	}

	if s.Sweeper != nil {
		if n := s.Sweeper.Sweep(now); n > 0 {
			s.Logger.Debug("swept idle rate limit windows", "count", n)
		}
	}
}
