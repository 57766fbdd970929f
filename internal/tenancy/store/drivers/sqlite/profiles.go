package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite/gen"
)

type profilesRepo struct {
	q *gen.Queries
}

func (r *profilesRepo) EnsureProfile(ctx context.Context, id, email string, now time.Time) error {
	return mapError(r.q.EnsureProfile(ctx, gen.EnsureProfileParams{
		ID:    id,
		Email: email,
		Now:   toMillis(now),
	}))
}

func (r *profilesRepo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	row, err := r.q.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, mapError(err)
	}
	return mapProfile(row), nil
}

func (r *profilesRepo) AssignRoleIfUnset(ctx context.Context, id string, role domain.Role, now time.Time) (bool, error) {
	n, err := r.q.AssignProfileRole(ctx, gen.AssignProfileRoleParams{
		Role: string(role),
		Now:  toMillis(now),
		ID:   id,
	})
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}
