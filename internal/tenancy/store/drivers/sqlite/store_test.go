package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(DSN(filepath.Join(t.TempDir(), "tenancy.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations(), "migrations are idempotent")
	return s
}

func seedProperty(t *testing.T, s *Store) domain.Property {
	t.Helper()

	p := domain.Property{
		ID:        idx.New().String(),
		OwnerID:   "owner-1",
		Name:      "Harbour View",
		Category:  "apartment",
		City:      "Sydney",
		Region:    "NSW",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Properties().CreateProperty(context.Background(), p))
	return p
}

func seedInvite(t *testing.T, s *Store, propertyID string, expiresAt time.Time) domain.Invite {
	t.Helper()

	inv := domain.Invite{
		ID:             idx.New().String(),
		TokenHash:      idx.New().String(),
		PropertyID:     propertyID,
		CreatedBy:      "owner-1",
		DeliveryMethod: domain.DeliveryLink,
		CreatedAt:      time.Now(),
		ExpiresAt:      expiresAt,
	}
	require.NoError(t, s.Invites().CreateInvite(context.Background(), inv))
	return inv
}

func TestInvitesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s)

	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()
	inv := seedInvite(t, s, p.ID, expires)

	got, err := s.Invites().GetInviteByTokenHash(ctx, inv.TokenHash)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
	require.Equal(t, expires, got.ExpiresAt)
	require.Nil(t, got.AcceptedAt)
	require.Empty(t, got.IntendedIdentity)

	_, err = s.Invites().GetInviteByTokenHash(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := inv
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.Invites().CreateInvite(ctx, dup), store.ErrAlreadyExists, "token hashes are unique")
}

func TestConsumeInviteIsConditional(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s)
	now := time.Now()

	inv := seedInvite(t, s, p.ID, now.Add(time.Hour))

	ok, err := s.Invites().ConsumeInvite(ctx, inv.ID, "tenant-a", now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Invites().ConsumeInvite(ctx, inv.ID, "tenant-b", now)
	require.NoError(t, err)
	require.False(t, ok, "accepted_at is terminal")

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, "tenant-a", got.AcceptedBy)
	require.NotNil(t, got.AcceptedAt)

	expired := seedInvite(t, s, p.ID, now.Add(-time.Second))
	ok, err = s.Invites().ConsumeInvite(ctx, expired.ID, "tenant-a", now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeAndDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s)
	now := time.Now()

	inv := seedInvite(t, s, p.ID, now.Add(time.Hour))

	ok, err := s.Invites().RevokeInvite(ctx, inv.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Invites().RevokeInvite(ctx, inv.ID, now.Add(time.Second))
	require.NoError(t, err)
	require.False(t, ok, "already unusable")

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.False(t, got.Usable(now))

	accepted := seedInvite(t, s, p.ID, now.Add(time.Minute))
	_, err = s.Invites().ConsumeInvite(ctx, accepted.ID, "tenant-a", now)
	require.NoError(t, err)

	n, err := s.Invites().DeleteExpiredInvites(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "accepted invites are kept")

	list, err := s.Invites().ListInvitesByProperty(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, accepted.ID, list[0].ID)
}

func TestOneActiveLinkPerIdentityAndProperty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s)
	now := time.Now()

	link := domain.TenantLink{
		ID:         idx.New().String(),
		IdentityID: "tenant-a",
		PropertyID: p.ID,
		IsActive:   true,
		Status:     domain.LinkActive,
		AcceptedAt: now,
		CreatedAt:  now,
	}
	require.NoError(t, s.Links().CreateLink(ctx, link))

	link.ID = idx.New().String()
	require.ErrorIs(t, s.Links().CreateLink(ctx, link), store.ErrAlreadyExists)

	inactive := link
	inactive.ID = idx.New().String()
	inactive.IsActive = false
	inactive.Status = domain.LinkRevoked
	require.NoError(t, s.Links().CreateLink(ctx, inactive), "inactive rows do not count")

	got, err := s.Links().GetActiveLink(ctx, "tenant-a", p.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
	require.Equal(t, domain.LinkActive, got.Status)

	n, err := s.Links().CountActiveLinksByIdentity(ctx, "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.Links().GetActiveLink(ctx, "tenant-b", p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileRoleIsWrittenOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.Profiles().EnsureProfile(ctx, "user-1", "a@example.com", now))
	require.NoError(t, s.Profiles().EnsureProfile(ctx, "user-1", "changed@example.com", now))

	p, err := s.Profiles().GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUnset, p.Role)
	require.Equal(t, "a@example.com", p.Email)

	ok, err := s.Profiles().AssignRoleIfUnset(ctx, "user-1", domain.RoleTenant, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Profiles().AssignRoleIfUnset(ctx, "user-1", domain.RoleLandlord, now)
	require.NoError(t, err)
	require.False(t, ok)

	p, err = s.Profiles().GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleTenant, p.Role)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		seedInviteTx := domain.Invite{
			ID:             idx.New().String(),
			TokenHash:      "rolled-back",
			PropertyID:     p.ID,
			CreatedBy:      "owner-1",
			DeliveryMethod: domain.DeliveryLink,
			CreatedAt:      time.Now(),
			ExpiresAt:      time.Now().Add(time.Hour),
		}
		require.NoError(t, tx.Invites().CreateInvite(ctx, seedInviteTx))
		return store.ErrConflict
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Invites().GetInviteByTokenHash(ctx, "rolled-back")
	require.ErrorIs(t, err, store.ErrNotFound)
}
