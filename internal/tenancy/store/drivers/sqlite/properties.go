package sqlite

import (
	"context"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite/gen"
)

type propertiesRepo struct {
	q *gen.Queries
}

func (r *propertiesRepo) CreateProperty(ctx context.Context, p domain.Property) error {
	return mapError(r.q.CreateProperty(ctx, gen.CreatePropertyParams{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Category:    p.Category,
		AddressLine: p.AddressLine,
		City:        p.City,
		Region:      p.Region,
		PostalCode:  p.PostalCode,
		Country:     p.Country,
		CreatedAt:   toMillis(p.CreatedAt),
	}))
}

func (r *propertiesRepo) GetPropertyByID(ctx context.Context, id string) (domain.Property, error) {
	row, err := r.q.GetPropertyByID(ctx, id)
	if err != nil {
		return domain.Property{}, mapError(err)
	}
	return mapProperty(row), nil
}
