package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/pkg/idx"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

var (
	ErrInvalidPropertyRequest = errors.New("invalid property request")
	ErrNotLandlord            = errors.New("only landlords may register properties")
)

type PropertyService struct {
	Store store.Store

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type CreatePropertyParams struct {
	CallerID    string
	Name        string
	Category    string
	AddressLine string
	City        string
	Region      string
	PostalCode  string
	Country     string
}

// CreateProperty registers a property owned by the caller, whose profile
// must hold the landlord role.
func (s *PropertyService) CreateProperty(ctx context.Context, p CreatePropertyParams) (domain.Property, error) {
	log := slogx.FromContext(ctx)

	name := strings.TrimSpace(p.Name)
	category := strings.TrimSpace(p.Category)
	if p.CallerID == "" || name == "" || category == "" {
		return domain.Property{}, ErrInvalidPropertyRequest
	}

	profile, err := s.Store.Profiles().GetProfile(ctx, p.CallerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Property{}, ErrNotLandlord
		}
		log.Error("failed to fetch profile", slog.Any("error", err))
		return domain.Property{}, err
	}
	if profile.Role != domain.RoleLandlord {
		return domain.Property{}, ErrNotLandlord
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	property := domain.Property{
		ID:          idx.NewAt(now).String(),
		OwnerID:     p.CallerID,
		Name:        name,
		Category:    category,
		AddressLine: strings.TrimSpace(p.AddressLine),
		City:        strings.TrimSpace(p.City),
		Region:      strings.TrimSpace(p.Region),
		PostalCode:  strings.TrimSpace(p.PostalCode),
		Country:     strings.TrimSpace(p.Country),
		CreatedAt:   now.UTC(),
	}
	if err := s.Store.Properties().CreateProperty(ctx, property); err != nil {
		log.Error("failed to create property", slog.Any("error", err))
		return domain.Property{}, err
	}

	log.Info("property created", slog.String("property_id", property.ID))
	return property, nil
}
