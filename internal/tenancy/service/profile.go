package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

var (
	ErrInvalidRole      = errors.New("invalid role")
	ErrRoleNotPermitted = errors.New("role cannot be self-assigned")
	ErrProfileNotFound  = errors.New("profile not found")
)

type ProfileService struct {
	Store store.Store

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type BootstrapParams struct {
	IdentityID string
	Email      string
	Role       string
}

type BootstrapResult struct {
	Profile domain.Profile

	// RoleAssigned is false when the profile already had a role; the stored
	// role is returned unchanged.
	RoleAssigned bool
}

// ProfileView is a profile plus the properties it is linked to.
type ProfileView struct {
	Profile domain.Profile
	Links   []domain.TenantLink
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Bootstrap creates the caller's profile if needed and assigns its role the
// first time it is called. Later calls never change the role.
func (s *ProfileService) Bootstrap(ctx context.Context, p BootstrapParams) (BootstrapResult, error) {
	log := slogx.FromContext(ctx)

	role, ok := domain.ParseRole(p.Role)
	if !ok || role == domain.RoleUnset || p.IdentityID == "" {
		return BootstrapResult{}, ErrInvalidRole
	}

	var res BootstrapResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()

		// 1. Make sure the profile row exists
		if err := tx.Profiles().EnsureProfile(ctx, p.IdentityID, p.Email, now); err != nil {
			return err
		}

		profile, err := tx.Profiles().GetProfile(ctx, p.IdentityID)
		if err != nil {
			return err
		}

		// 2. Role already chosen: report it unchanged
		if profile.Role != domain.RoleUnset {
			res = BootstrapResult{Profile: profile}
			return nil
		}

		// 3. Check the caller may take this role
		if !role.SelfAssignable() {
			return ErrRoleNotPermitted
		}
		if role == domain.RoleTenant {
			n, err := tx.Links().CountActiveLinksByIdentity(ctx, p.IdentityID)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrRoleNotPermitted
			}
		}

		// 4. Write once
		assigned, err := tx.Profiles().AssignRoleIfUnset(ctx, p.IdentityID, role, now)
		if err != nil {
			return err
		}

		profile, err = tx.Profiles().GetProfile(ctx, p.IdentityID)
		if err != nil {
			return err
		}
		res = BootstrapResult{Profile: profile, RoleAssigned: assigned}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotPermitted) {
			log.Warn("role self-assignment refused", slog.String("role", string(role)))
			return BootstrapResult{}, err
		}
		log.Error("failed to bootstrap profile", slog.Any("error", err))
		return BootstrapResult{}, err
	}

	if res.RoleAssigned {
		log.Info("profile role assigned", slog.String("role", string(res.Profile.Role)))
	}
	return res, nil
}

// GetProfile returns the caller's profile and active links.
func (s *ProfileService) GetProfile(ctx context.Context, identityID string) (ProfileView, error) {
	log := slogx.FromContext(ctx)

	profile, err := s.Store.Profiles().GetProfile(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProfileView{}, ErrProfileNotFound
		}
		log.Error("failed to fetch profile", slog.Any("error", err))
		return ProfileView{}, err
	}

	links, err := s.Store.Links().ListActiveLinksByIdentity(ctx, identityID)
	if err != nil {
		log.Error("failed to list links", slog.Any("error", err))
		return ProfileView{}, err
	}

	return ProfileView{Profile: profile, Links: links}, nil
}
