package invitesdk

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type State string

const (
	StateInit             State = "init"
	StateAwaitingAuth     State = "awaiting_auth"
	StateAuthenticated    State = "authenticated"
	StateDefaultBootstrap State = "default_bootstrap"
	StatePendingInvite    State = "pending_invite"
	StateConfirmRecipient State = "confirm_recipient"
	StateRoleAssigned     State = "role_assigned"
	StateDone             State = "done"
	StateError            State = "error"
)

// InviteRole is the role assigned after a successful accept.
const InviteRole = "tenant"

var ErrGuardClosed = errors.New("invitesdk: guard closed")

// Snapshot is the guard's externally visible state.
type Snapshot struct {
	State      State
	IdentityID string

	// ResourceID is the property linked through the invite, if any.
	ResourceID string
	Role       string

	// Err is the failure that led to StateError, kept for display.
	Err error
}

type GuardConfig struct {
	Loop         *Loop
	API          API
	Markers      MarkerStore
	Suppression  *Suppression
	Bootstrapper *DefaultBootstrapper
	Logger       *slog.Logger

	// Timeout bounds each accept and role call. Defaults to
	// DefaultAttemptTimeout.
	Timeout time.Duration

	// OnChange is called on the loop after every transition.
	OnChange func(Snapshot)
}

// Guard decides, for each sign-in, whether a pending invite or the default
// bootstrap sets the identity's first role. Everything except the
// constructor, HandleDeepLink and the exported accessors runs on the loop.
type Guard struct {
	cfg GuardConfig
	log *slog.Logger

	// loop-confined
	state      State
	identity   Identity
	token      string
	resourceID string
	role       string
	err        error
	closed     bool
}

func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAttemptTimeout
	}
	if cfg.Suppression == nil {
		cfg.Suppression = &Suppression{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Guard{cfg: cfg, log: log, state: StateInit}
}

// Attach subscribes the guard to bus and to the bootstrapper's outcomes.
// The guard then waits for the first authenticated event.
func (g *Guard) Attach(bus *AuthBus) {
	bus.Subscribe(g.onAuthenticated)
	if g.cfg.Bootstrapper != nil {
		g.cfg.Bootstrapper.Observe(g.onBootstrap)
	}
	g.cfg.Loop.Post(func() {
		if g.state == StateInit {
			g.setState(StateAwaitingAuth)
		}
	})
}

// HandleDeepLink stores the token from link as the pending marker. When an
// identity is already signed in and settled, the invite is accepted right
// away.
func (g *Guard) HandleDeepLink(link string) error {
	token, err := ParseInviteLink(link)
	if err != nil {
		return err
	}
	if err := g.cfg.Markers.Save(Marker{Token: token, SavedAt: time.Now().UTC()}); err != nil {
		return err
	}

	g.cfg.Loop.Post(func() {
		if g.closed || g.identity.ID == "" {
			return
		}
		if g.state == StateDone || g.state == StateError {
			g.token = token
			g.err = nil
			g.startAccept(false)
		}
	})
	return nil
}

// ContinueAnyway accepts an invite addressed to someone else after the user
// confirmed it.
func (g *Guard) ContinueAnyway() {
	g.cfg.Loop.Post(func() {
		if g.closed || g.state != StateConfirmRecipient {
			return
		}
		g.log.Info("accepting invite addressed to another recipient", "identity_id", g.identity.ID)
		g.startAccept(true)
	})
}

// SwitchAccount keeps the marker and waits for a different identity to
// sign in.
func (g *Guard) SwitchAccount() {
	g.cfg.Loop.Post(func() {
		if g.closed || g.state != StateConfirmRecipient {
			return
		}
		g.cfg.Suppression.Release()
		g.identity = Identity{}
		g.token = ""
		g.setState(StateAwaitingAuth)
	})
}

// Close stops the guard. Responses still in flight are dropped; the server
// completes those requests regardless.
func (g *Guard) Close() {
	g.cfg.Loop.Call(func() {
		if g.closed {
			return
		}
		g.closed = true
		g.cfg.Suppression.Release()
	})
}

func (g *Guard) Snapshot() Snapshot {
	var s Snapshot
	g.cfg.Loop.Call(func() { s = g.snapshot() })
	return s
}

// onAuthenticated runs in the event's loop turn. Suppression must be raised
// here, before any other subscriber's deferred work gets a turn.
func (g *Guard) onAuthenticated(id Identity) {
	if g.closed {
		return
	}

	g.identity = id
	g.resourceID, g.role, g.err = "", "", nil
	g.setState(StateAuthenticated)

	marker, ok, err := g.cfg.Markers.Load()
	if err != nil {
		g.log.Warn("failed to load invite marker", "err", err)
	}
	if ok {
		g.cfg.Suppression.Suppress()
		g.token = marker.Token
		g.startAccept(false)
		return
	}

	g.setState(StateDefaultBootstrap)
}

func (g *Guard) startAccept(override bool) {
	g.setState(StatePendingInvite)

	id, token := g.identity, g.token
	Async(g.cfg.Loop, func() (*AcceptResponse, error) {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.Timeout)
		defer cancel()
		return g.cfg.API.Accept(ctx, id.AccessToken, AcceptRequest{Token: token, OverrideRecipient: override})
	}, func(resp *AcceptResponse, err error) {
		if g.stale(id, StatePendingInvite) {
			return
		}
		g.onAccepted(resp, err)
	})
}

func (g *Guard) onAccepted(resp *AcceptResponse, err error) {
	switch {
	case err == nil && resp != nil && resp.Success:
		handled := g.token
		g.clearMarker()
		g.resourceID = resp.ResourceID
		g.assignInviteRole(handled)

	case err == nil:
		g.fail(&APIError{StatusCode: 200, Code: ErrorCodeServerError, Description: "accept did not succeed"})

	case IsWrongRecipient(err):
		g.setState(StateConfirmRecipient)

	default:
		g.fail(err)
	}
}

func (g *Guard) assignInviteRole(handled string) {
	id := g.identity
	Async(g.cfg.Loop, func() (*BootstrapProfileResponse, error) {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.Timeout)
		defer cancel()
		return g.cfg.API.BootstrapProfile(ctx, id.AccessToken, InviteRole)
	}, func(resp *BootstrapProfileResponse, err error) {
		if g.stale(id, StatePendingInvite) {
			return
		}
		if err != nil {
			// The link exists; a landlord fallback would be wrong here.
			g.log.Warn("failed to assign invite role", "err", err)
			g.err = err
			g.cfg.Suppression.Release()
			g.setState(StateError)
			g.resumePending(handled)
			return
		}
		g.role = resp.Role
		g.setState(StateRoleAssigned)
		g.cfg.Suppression.Release()
		g.setState(StateDone)
		g.resumePending(handled)
	})
}

// fail ends the invite path and lets the default bootstrap give the
// identity a role.
func (g *Guard) fail(err error) {
	g.log.Warn("invite acceptance failed", "identity_id", g.identity.ID, "err", err)

	handled := g.token
	g.err = err
	if IsInvalidToken(err) {
		g.clearMarker()
	}

	// A newer link replaces the fallback; suppression stays raised for it.
	if g.resumePending(handled) {
		return
	}

	g.cfg.Suppression.Release()
	g.setState(StateError)

	if g.cfg.Bootstrapper != nil {
		g.cfg.Bootstrapper.Bootstrap(g.identity)
	}
}

func (g *Guard) onBootstrap(o BootstrapOutcome) {
	if g.closed || o.Identity.ID != g.identity.ID {
		return
	}

	switch g.state {
	case StateDefaultBootstrap:
		switch {
		case o.Err != nil:
			g.err = o.Err
			g.setState(StateError)
			g.resumePending("")
		case o.Skipped:
			// Someone else holds suppression; stay put until it resolves.
		default:
			g.role = o.Profile.Role
			g.setState(StateRoleAssigned)
			g.setState(StateDone)
			g.resumePending("")
		}

	case StateError:
		// Fallback after a failed accept: record the role, keep the error.
		if o.Profile != nil {
			g.role = o.Profile.Role
			g.notifyChange()
		}
	}
}

// clearMarker removes the marker only if it still holds the token this
// guard acted on. A link saved in the meantime stays for resumePending.
func (g *Guard) clearMarker() {
	if _, err := g.cfg.Markers.ClearIf(g.token); err != nil {
		g.log.Warn("failed to clear invite marker", "err", err)
	}
	g.token = ""
}

// resumePending accepts a marker saved by a deep link that arrived while
// the guard was busy. handled is the token just processed; a marker still
// holding it is left alone.
func (g *Guard) resumePending(handled string) bool {
	if g.closed {
		return false
	}
	marker, ok, err := g.cfg.Markers.Load()
	if err != nil {
		g.log.Warn("failed to load invite marker", "err", err)
		return false
	}
	if !ok || marker.Token == handled {
		return false
	}

	g.log.Info("accepting invite link received during an earlier attempt", "identity_id", g.identity.ID)
	g.token = marker.Token
	g.err = nil
	g.startAccept(false)
	return true
}

// stale reports whether a continuation belongs to an earlier identity or
// phase and must be dropped.
func (g *Guard) stale(id Identity, want State) bool {
	return g.closed || g.identity.ID != id.ID || g.state != want
}

func (g *Guard) setState(s State) {
	g.state = s
	g.notifyChange()
}

func (g *Guard) notifyChange() {
	if g.cfg.OnChange != nil {
		g.cfg.OnChange(g.snapshot())
	}
}

func (g *Guard) snapshot() Snapshot {
	s := Snapshot{
		State:      g.state,
		IdentityID: g.identity.ID,
		ResourceID: g.resourceID,
		Role:       g.role,
		Err:        g.err,
	}
	if g.closed && s.Err == nil && s.State != StateDone {
		s.Err = ErrGuardClosed
	}
	return s
}
