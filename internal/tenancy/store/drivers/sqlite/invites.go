package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite/gen"
)

type invitesRepo struct {
	q *gen.Queries
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	return mapError(r.q.CreateInvite(ctx, gen.CreateInviteParams{
		ID:               inv.ID,
		TokenHash:        inv.TokenHash,
		PropertyID:       inv.PropertyID,
		CreatedBy:        inv.CreatedBy,
		IntendedIdentity: mapStringNull(inv.IntendedIdentity),
		DeliveryMethod:   string(inv.DeliveryMethod),
		CreatedAt:        toMillis(inv.CreatedAt),
		ExpiresAt:        toMillis(inv.ExpiresAt),
	}))
}

func (r *invitesRepo) GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	row, err := r.q.GetInviteByTokenHash(ctx, hash)
	if err != nil {
		return domain.Invite{}, mapError(err)
	}
	return mapInvite(row), nil
}

// LockInviteByTokenHash relies on the transaction having been started
// IMMEDIATE (see DSN): the database write lock is already held, so a plain
// read is enough.
func (r *invitesRepo) LockInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	return r.GetInviteByTokenHash(ctx, hash)
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	row, err := r.q.GetInviteByID(ctx, id)
	if err != nil {
		return domain.Invite{}, mapError(err)
	}
	return mapInvite(row), nil
}

func (r *invitesRepo) ListInvitesByProperty(ctx context.Context, propertyID string) ([]domain.Invite, error) {
	rows, err := r.q.ListInvitesByProperty(ctx, propertyID)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]domain.Invite, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapInvite(row))
	}
	return out, nil
}

func (r *invitesRepo) ConsumeInvite(ctx context.Context, inviteID, identityID string, now time.Time) (bool, error) {
	n, err := r.q.ConsumeInvite(ctx, gen.ConsumeInviteParams{
		Now:        toMillis(now),
		AcceptedBy: mapStringNull(identityID),
		ID:         inviteID,
	})
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}

func (r *invitesRepo) RevokeInvite(ctx context.Context, inviteID string, now time.Time) (bool, error) {
	n, err := r.q.RevokeInvite(ctx, gen.RevokeInviteParams{
		Now: toMillis(now),
		ID:  inviteID,
	})
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}

func (r *invitesRepo) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.q.DeleteExpiredInvites(ctx, toMillis(cutoff))
	return n, mapError(err)
}
