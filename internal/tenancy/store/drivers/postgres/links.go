package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/postgres/gen"
)

type linksRepo struct {
	q *gen.Queries
}

func (r *linksRepo) CreateLink(ctx context.Context, l domain.TenantLink) error {
	var acceptedAt sql.NullTime
	if !l.AcceptedAt.IsZero() {
		acceptedAt = sql.NullTime{Time: l.AcceptedAt.UTC(), Valid: true}
	}

	return mapError(r.q.CreateTenantLink(ctx, gen.CreateTenantLinkParams{
		ID:               l.ID,
		IdentityID:       l.IdentityID,
		PropertyID:       l.PropertyID,
		InviteID:         mapStringNull(l.InviteID),
		IsActive:         l.IsActive,
		InvitationStatus: string(l.Status),
		AcceptedAt:       acceptedAt,
		CreatedAt:        toDB(l.CreatedAt),
	}))
}

func (r *linksRepo) GetActiveLink(ctx context.Context, identityID, propertyID string) (domain.TenantLink, error) {
	row, err := r.q.GetActiveTenantLink(ctx, gen.GetActiveTenantLinkParams{
		IdentityID: identityID,
		PropertyID: propertyID,
	})
	if err != nil {
		return domain.TenantLink{}, mapError(err)
	}
	return mapLink(row), nil
}

func (r *linksRepo) ListActiveLinksByIdentity(ctx context.Context, identityID string) ([]domain.TenantLink, error) {
	rows, err := r.q.ListActiveTenantLinksByIdentity(ctx, identityID)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]domain.TenantLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLink(row))
	}
	return out, nil
}

func (r *linksRepo) CountActiveLinksByIdentity(ctx context.Context, identityID string) (int64, error) {
	n, err := r.q.CountActiveTenantLinksByIdentity(ctx, identityID)
	return n, mapError(err)
}
