package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/postgres/gen"
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
		CreatedAt:        toDB(inv.CreatedAt),
		ExpiresAt:        toDB(inv.ExpiresAt),
	}))
}

func (r *invitesRepo) GetInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	row, err := r.q.GetInviteByTokenHash(ctx, hash)
	if err != nil {
		return domain.Invite{}, mapError(err)
	}
	return mapInvite(row), nil
}

// LockInviteByTokenHash takes a row lock (SELECT ... FOR UPDATE) that is
// held until the surrounding transaction ends. A concurrent locker blocks
// and then reads the committed row.
func (r *invitesRepo) LockInviteByTokenHash(ctx context.Context, hash string) (domain.Invite, error) {
	row, err := r.q.LockInviteByTokenHash(ctx, hash)
	if err != nil {
		return domain.Invite{}, mapError(err)
	}
	return mapInvite(row), nil
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
		Now:        toDB(now),
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
		Now: toDB(now),
		ID:  inviteID,
	})
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}

func (r *invitesRepo) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.q.DeleteExpiredInvites(ctx, toDB(cutoff))
	return n, mapError(err)
}
