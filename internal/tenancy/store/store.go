package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when the database aborted a transaction because
	// of lock contention (sqlite busy, postgres serialization failure or
	// deadlock). The whole transaction may be retried.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. Repositories obtained from a Tx run inside that transaction, so
// nested transactions cannot be started by accident.
type Store interface {
	Properties() Properties
	Invites() Invites
	Links() Links
	Profiles() Profiles

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Properties interface {
	// CreateProperty inserts a property. Property management lives in
	// another service; this exists for seeding and tests.
	CreateProperty(ctx context.Context, p domain.Property) error

	GetPropertyByID(ctx context.Context, id string) (domain.Property, error)
}

type Invites interface {
	// CreateInvite writes a new invite. token_hash is unique.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByTokenHash returns the invite in any state.
	GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error)

	// LockInviteByTokenHash is GetInviteByTokenHash that also locks the row
	// until the surrounding transaction ends. Only meaningful inside a Tx.
	LockInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error)

	GetInviteByID(ctx context.Context, id string) (domain.Invite, error)

	// ListInvitesByProperty returns invites newest first.
	ListInvitesByProperty(ctx context.Context, propertyID string) ([]domain.Invite, error)

	// ConsumeInvite sets accepted_at/accepted_by only if the invite is still
	// usable at now. It reports whether a row changed.
	ConsumeInvite(ctx context.Context, inviteID, identityID string, now time.Time) (bool, error)

	// RevokeInvite sets expires_at to now on an unaccepted, unexpired invite.
	// It reports whether a row changed.
	RevokeInvite(ctx context.Context, inviteID string, now time.Time) (bool, error)

	// DeleteExpiredInvites removes unaccepted invites that expired before
	// cutoff and returns how many were removed.
	DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

type Links interface {
	// CreateLink inserts a link. A second active link for the same
	// (identity, property) fails with ErrAlreadyExists.
	CreateLink(ctx context.Context, l domain.TenantLink) error

	GetActiveLink(ctx context.Context, identityID, propertyID string) (domain.TenantLink, error)

	ListActiveLinksByIdentity(ctx context.Context, identityID string) ([]domain.TenantLink, error)

	CountActiveLinksByIdentity(ctx context.Context, identityID string) (int64, error)
}

type Profiles interface {
	// EnsureProfile creates the profile with role unset if it does not exist.
	// Existing profiles are left untouched.
	EnsureProfile(ctx context.Context, id, email string, now time.Time) error

	GetProfile(ctx context.Context, id string) (domain.Profile, error)

	// AssignRoleIfUnset writes role only while the stored role is unset. It
	// reports whether the role was written.
	AssignRoleIfUnset(ctx context.Context, id string, role domain.Role, now time.Time) (bool, error)
}
