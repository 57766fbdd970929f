package invitesdk

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRole is what a fresh identity gets when it did not arrive through
// an invite. Tenant needs an active link, so it is never a default.
const DefaultRole = "landlord"

// API is the subset of Client the coordination code needs.
type API interface {
	Accept(ctx context.Context, accessToken string, req AcceptRequest) (*AcceptResponse, error)
	BootstrapProfile(ctx context.Context, accessToken, role string) (*BootstrapProfileResponse, error)
}

// BootstrapOutcome reports one run of the default bootstrap.
type BootstrapOutcome struct {
	Identity Identity

	// Skipped is set when suppression stopped the role write.
	Skipped bool
	Profile *BootstrapProfileResponse
	Err     error
}

// DefaultBootstrapper gives every newly authenticated identity a baseline
// profile and role, unless the guard has suppressed it.
type DefaultBootstrapper struct {
	Loop        *Loop
	API         API
	Suppression *Suppression
	Logger      *slog.Logger

	// Role defaults to DefaultRole.
	Role string

	// Timeout bounds the profile write. Defaults to DefaultAttemptTimeout.
	Timeout time.Duration

	observers []func(BootstrapOutcome)
}

// Attach subscribes the bootstrapper to bus.
func (b *DefaultBootstrapper) Attach(bus *AuthBus) {
	bus.Subscribe(b.onAuthenticated)
}

// Observe registers fn to receive outcomes on the loop. Call before the
// first event.
func (b *DefaultBootstrapper) Observe(fn func(BootstrapOutcome)) {
	b.observers = append(b.observers, fn)
}

// Bootstrap schedules a run for id on the next loop turn.
func (b *DefaultBootstrapper) Bootstrap(id Identity) {
	b.Loop.Post(func() { b.run(id) })
}

// onAuthenticated mirrors an asynchronous profile call: the work starts on
// a later turn, after every subscriber has seen the event.
func (b *DefaultBootstrapper) onAuthenticated(id Identity) {
	b.Bootstrap(id)
}

func (b *DefaultBootstrapper) run(id Identity) {
	if b.Suppression.Suppressed() {
		b.logger().Debug("default bootstrap suppressed", "identity_id", id.ID)
		b.notify(BootstrapOutcome{Identity: id, Skipped: true})
		return
	}

	role := b.Role
	if role == "" {
		role = DefaultRole
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	Async(b.Loop, func() (*BootstrapProfileResponse, error) {
		// Suppression may have been raised while this was queued.
		if b.Suppression.Suppressed() {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return b.API.BootstrapProfile(ctx, id.AccessToken, role)
	}, func(resp *BootstrapProfileResponse, err error) {
		switch {
		case err != nil:
			b.logger().Warn("default bootstrap failed", "identity_id", id.ID, "err", err)
			b.notify(BootstrapOutcome{Identity: id, Err: err})
		case resp == nil:
			b.notify(BootstrapOutcome{Identity: id, Skipped: true})
		default:
			b.notify(BootstrapOutcome{Identity: id, Profile: resp})
		}
	})
}

func (b *DefaultBootstrapper) notify(o BootstrapOutcome) {
	for _, fn := range b.observers {
		fn(o)
	}
}

func (b *DefaultBootstrapper) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
