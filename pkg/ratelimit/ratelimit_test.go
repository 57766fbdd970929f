package ratelimit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

// fakeClock is shared by limiter instances in a test so they agree on time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newValkeyStore(t *testing.T, mr *miniredis.Miniredis) *ratelimit.ValkeyStore {
	t.Helper()

	client, err := ratelimit.DialValkey(ratelimit.ValkeyConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)

	st := ratelimit.NewValkeyStore(client)
	t.Cleanup(st.Close)
	return st
}

// stores returns a fresh store of each kind. The memory store only
// supports a single instance, so cross-instance tests use valkey.
func stores(t *testing.T) map[string]func() ratelimit.Store {
	return map[string]func() ratelimit.Store{
		"valkey": func() ratelimit.Store { return newValkeyStore(t, miniredis.RunT(t)) },
		"memory": func() ratelimit.Store { return ratelimit.NewMemoryStore() },
	}
}

func testPolicies(limit int, window time.Duration, failure ratelimit.FailurePolicy) ratelimit.Policies {
	return ratelimit.Policies{"test.op": {Limit: limit, Window: window, Failure: failure}}
}

func TestAllowAdmitsExactlyLimit(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := ratelimit.New(newStore(), testPolicies(5, time.Minute, ratelimit.FailOpen), ratelimit.WithClock(clock.Now))

			allowed := 0
			for i := 0; i < 8; i++ {
				d, err := l.Allow(context.Background(), "test.op", "10.0.0.1")
				require.NoError(t, err)
				if d.Allowed {
					allowed++
					require.Equal(t, 5-allowed, d.Remaining)
				} else {
					require.Positive(t, d.RetryAfter)
				}
				clock.Advance(time.Second)
			}
			require.Equal(t, 5, allowed)
		})
	}
}

func TestAllowSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newFakeClock()
	policies := testPolicies(20, time.Minute, ratelimit.FailOpen)

	a := ratelimit.New(newValkeyStore(t, mr), policies, ratelimit.WithClock(clock.Now))
	b := ratelimit.New(newValkeyStore(t, mr), policies, ratelimit.WithClock(clock.Now))

	allowed, rejected := 0, 0
	for i := 0; i < 30; i++ {
		l := a
		if i%2 == 1 {
			l = b
		}
		d, err := l.Allow(context.Background(), "test.op", "user-1")
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		} else {
			rejected++
		}
		clock.Advance(100 * time.Millisecond)
	}

	require.Equal(t, 20, allowed)
	require.Equal(t, 10, rejected)
}

func TestAllowConcurrentBurstNeverExceedsLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newFakeClock()
	policies := testPolicies(10, time.Minute, ratelimit.FailOpen)

	limiters := []*ratelimit.Limiter{
		ratelimit.New(newValkeyStore(t, mr), policies, ratelimit.WithClock(clock.Now)),
		ratelimit.New(newValkeyStore(t, mr), policies, ratelimit.WithClock(clock.Now)),
		ratelimit.New(newValkeyStore(t, mr), policies, ratelimit.WithClock(clock.Now)),
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(l *ratelimit.Limiter) {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "test.op", "burst")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(limiters[i%len(limiters)])
	}
	wg.Wait()

	require.Equal(t, 10, allowed)
}

func TestRetryAfterIsSufficient(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := ratelimit.New(newStore(), testPolicies(3, 10*time.Second, ratelimit.FailOpen), ratelimit.WithClock(clock.Now))
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				d, err := l.Allow(ctx, "test.op", "caller")
				require.NoError(t, err)
				require.True(t, d.Allowed)
				clock.Advance(time.Second)
			}

			d, err := l.Allow(ctx, "test.op", "caller")
			require.NoError(t, err)
			require.False(t, d.Allowed)
			// Oldest hit was 3s ago in a 10s window.
			require.Equal(t, 7*time.Second, d.RetryAfter)

			clock.Advance(d.RetryAfter)
			d, err = l.Allow(ctx, "test.op", "caller")
			require.NoError(t, err)
			require.True(t, d.Allowed)
		})
	}
}

func TestRejectedRequestsDoNotExtendWindow(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := ratelimit.New(newStore(), testPolicies(1, 10*time.Second, ratelimit.FailOpen), ratelimit.WithClock(clock.Now))
			ctx := context.Background()

			d, err := l.Allow(ctx, "test.op", "caller")
			require.NoError(t, err)
			require.True(t, d.Allowed)

			for i := 0; i < 5; i++ {
				clock.Advance(time.Second)
				d, err = l.Allow(ctx, "test.op", "caller")
				require.NoError(t, err)
				require.False(t, d.Allowed)
			}

			require.Equal(t, 5*time.Second, d.RetryAfter)
		})
	}
}

func TestKeysAreIsolated(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Policies{
		"a": {Limit: 1, Window: time.Minute},
		"b": {Limit: 1, Window: time.Minute},
	}, ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	for _, call := range []struct{ op, caller string }{{"a", "x"}, {"a", "y"}, {"b", "x"}} {
		d, err := l.Allow(ctx, call.op, call.caller)
		require.NoError(t, err)
		require.True(t, d.Allowed, call)
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := ratelimit.New(newStore(), testPolicies(5, time.Minute, ratelimit.FailOpen), ratelimit.WithClock(clock.Now))
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				st, err := l.Status(ctx, "test.op", "caller")
				require.NoError(t, err)
				require.Equal(t, 0, st.Used)
			}

			_, err := l.Allow(ctx, "test.op", "caller")
			require.NoError(t, err)
			clock.Advance(time.Second)

			st, err := l.Status(ctx, "test.op", "caller")
			require.NoError(t, err)
			require.Equal(t, 1, st.Used)
			require.Equal(t, 4, st.Remaining)
			require.Equal(t, time.Minute, st.Window)

			clock.Advance(time.Minute)
			st, err = l.Status(ctx, "test.op", "caller")
			require.NoError(t, err)
			require.Equal(t, 0, st.Used)
		})
	}
}

func TestValkeyKeyExpiresWithWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	l := ratelimit.New(newValkeyStore(t, mr), testPolicies(5, 90*time.Second, ratelimit.FailOpen))

	_, err := l.Allow(context.Background(), "test.op", "caller")
	require.NoError(t, err)

	require.Equal(t, 90*time.Second, mr.TTL("ratelimit:test.op:caller"))

	mr.FastForward(91 * time.Second)
	require.False(t, mr.Exists("ratelimit:test.op:caller"))
}

type brokenStore struct{}

var errBroken = errors.New("connection refused")

func (brokenStore) Hit(context.Context, string, time.Time, time.Duration, int, string) (ratelimit.HitResult, error) {
	return ratelimit.HitResult{}, errBroken
}

func (brokenStore) Count(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, errBroken
}

func (brokenStore) Ping(context.Context) error { return errBroken }

func TestStoreFailurePolicy(t *testing.T) {
	t.Run("fails open and logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		l := ratelimit.New(brokenStore{}, testPolicies(1, time.Minute, ratelimit.FailOpen), ratelimit.WithLogger(logger))

		d, err := l.Allow(context.Background(), "test.op", "caller")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.True(t, d.Degraded)
		require.Contains(t, buf.String(), "failing open")
	})

	t.Run("fails closed when configured", func(t *testing.T) {
		l := ratelimit.New(brokenStore{}, testPolicies(1, time.Minute, ratelimit.FailClosed), ratelimit.WithLogger(slog.New(slog.DiscardHandler)))

		d, err := l.Allow(context.Background(), "test.op", "caller")
		require.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
		require.False(t, d.Allowed)
	})

	t.Run("unreachable valkey fails open", func(t *testing.T) {
		mr := miniredis.RunT(t)
		l := ratelimit.New(newValkeyStore(t, mr), testPolicies(1, time.Minute, ratelimit.FailOpen), ratelimit.WithLogger(slog.New(slog.DiscardHandler)))
		mr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		d, err := l.Allow(ctx, "test.op", "caller")
		require.NoError(t, err)
		require.True(t, d.Degraded)
	})
}

func TestUnknownOperation(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.DefaultPolicies())

	_, err := l.Allow(context.Background(), "nope", "caller")
	require.ErrorIs(t, err, ratelimit.ErrUnknownOperation)

	_, err = l.Status(context.Background(), "nope", "caller")
	require.ErrorIs(t, err, ratelimit.ErrUnknownOperation)
}

func TestMemoryStoreSweep(t *testing.T) {
	st := ratelimit.NewMemoryStore()
	now := time.Now()

	_, err := st.Hit(context.Background(), "k1", now, time.Second, 5, "m")
	require.NoError(t, err)
	_, err = st.Hit(context.Background(), "k2", now, time.Hour, 5, "m")
	require.NoError(t, err)

	require.Equal(t, 1, st.Sweep(now.Add(2*time.Second)))
	n, err := st.Count(context.Background(), "k2", now.Add(2*time.Second), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
