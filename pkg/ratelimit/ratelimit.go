// Package ratelimit implements a sliding-window request limiter whose state
// lives in a store shared by every service instance.
//
// Each check evicts entries that fell out of the trailing window, counts
// what is left, records the request when it fits and refreshes the key
// expiry, all as a single atomic operation on the store. Rejected requests
// are not recorded, so once the returned retry-after has elapsed the oldest
// entry has left the window and the next request is admitted.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/idx"
)

var (
	// ErrStoreUnavailable is returned for fail-closed operations when the
	// shared store cannot be reached.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

	ErrUnknownOperation = errors.New("ratelimit: unknown operation")
)

// Store is the shared window storage.
type Store interface {
	// Hit atomically evicts members scored at or before now-window, counts
	// the rest, adds member when the count is below limit and refreshes the
	// key expiry to window.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int, member string) (HitResult, error)

	// Count returns the number of members inside the window without
	// mutating anything.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)

	Ping(ctx context.Context) error
}

// HitResult is what the store observed while handling a Hit.
type HitResult struct {
	Admitted bool
	Count    int
	// Oldest is the earliest request still inside the window.
	Oldest time.Time
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	// Degraded is set when the store failed and the policy failed open.
	Degraded bool
}

// Status is a read-only view of a caller's window.
type Status struct {
	Limit     int
	Used      int
	Remaining int
	Window    time.Duration
}

// Limiter applies per-operation policies against a Store.
type Limiter struct {
	store    Store
	policies Policies
	prefix   string
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Limiter)

// WithClock overrides time.Now. Every instance sharing a store should agree
// on time; the clock is injectable for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithKeyPrefix namespaces keys when several deployments share one store.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// New creates a Limiter. Policies are copied.
func New(store Store, policies Policies, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		policies: policies.Clone(),
		prefix:   "ratelimit:",
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured policy for op.
func (l *Limiter) Policy(op string) (Policy, bool) {
	p, ok := l.policies[op]
	return p, ok
}

// Allow records a request by caller against op and reports whether it may
// proceed.
func (l *Limiter) Allow(ctx context.Context, op, caller string) (Decision, error) {
	policy, ok := l.policies[op]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	now := l.now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), idx.New())

	res, err := l.store.Hit(ctx, l.key(op, caller), now, policy.Window, policy.Limit, member)
	if err != nil {
		if policy.Failure == FailClosed {
			l.logger.Error("rate limit store unavailable, failing closed",
				slog.String("operation", op),
				slog.Any("error", err),
			)
			return Decision{Limit: policy.Limit}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		l.logger.Warn("rate limit store unavailable, failing open",
			slog.String("operation", op),
			slog.Any("error", err),
		)
		return Decision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit, Degraded: true}, nil
	}

	if !res.Admitted {
		retryAfter := res.Oldest.Add(policy.Window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		return Decision{Limit: policy.Limit, RetryAfter: retryAfter}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: max(policy.Limit-res.Count, 0),
	}, nil
}

// Status reports how much of op's window caller has used. It never
// records a request.
func (l *Limiter) Status(ctx context.Context, op, caller string) (Status, error) {
	policy, ok := l.policies[op]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	used, err := l.store.Count(ctx, l.key(op, caller), l.now(), policy.Window)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Status{
		Limit:     policy.Limit,
		Used:      used,
		Remaining: max(policy.Limit-used, 0),
		Window:    policy.Window,
	}, nil
}

// Ping checks the backing store.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

func (l *Limiter) key(op, caller string) string {
	return l.prefix + op + ":" + caller
}
