package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/pkg/cryptox"
	"github.com/aussiebroadwan/tenancy/pkg/idx"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

var (
	// ErrInvalidToken covers absent, expired, revoked and consumed tokens
	// alike so callers cannot tell them apart.
	ErrInvalidToken = errors.New("invite token is invalid or expired")

	ErrInvalidInviteRequest = errors.New("invalid invite request")
	ErrInvalidResource      = errors.New("property does not exist")
	ErrNotOwner             = errors.New("caller does not own the property")

	// ErrWrongRecipient is advisory: the invite names someone else and the
	// caller may retry with an explicit override.
	ErrWrongRecipient = errors.New("invite was issued to a different recipient")
)

const (
	DefaultInviteTTL = 48 * time.Hour

	maxAcceptAttempts = 3
)

type InviteService struct {
	Store store.Store

	// TTL is how long issued invites stay usable. Defaults to 48h.
	TTL time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type IssueInviteParams struct {
	PropertyID       string
	CallerID         string
	IntendedIdentity string
	DeliveryMethod   domain.DeliveryMethod
}

// IssuedInvite carries the raw token. It is the only time the token is
// available; only its fingerprint is stored.
type IssuedInvite struct {
	InviteID   string
	PropertyID string
	Token      string
	ExpiresAt  time.Time
}

type AcceptInviteParams struct {
	Token             string
	IdentityID        string
	IdentityEmail     string
	OverrideRecipient bool

	// IdentityEmailVerified gates matching invites addressed to
	// IdentityEmail.
	IdentityEmailVerified bool
}

type AcceptResult struct {
	PropertyID    string
	LinkID        string
	AlreadyLinked bool
}

func (s *InviteService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *InviteService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultInviteTTL
}

// IssueInvite creates a single-use invite for a property owned by the caller.
func (s *InviteService) IssueInvite(ctx context.Context, p IssueInviteParams) (IssuedInvite, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate input
	if p.DeliveryMethod == "" {
		p.DeliveryMethod = domain.DeliveryLink
	}
	p.PropertyID = strings.TrimSpace(p.PropertyID)
	p.IntendedIdentity = strings.TrimSpace(p.IntendedIdentity)
	if p.PropertyID == "" || p.CallerID == "" || !p.DeliveryMethod.Valid() {
		log.Warn("invite issue rejected: invalid request",
			slog.String("property_id", p.PropertyID),
			slog.String("delivery_method", string(p.DeliveryMethod)),
		)
		return IssuedInvite{}, ErrInvalidInviteRequest
	}

	// 2. Only the owner may invite to a property
	if _, err := s.ownedProperty(ctx, p.PropertyID, p.CallerID); err != nil {
		return IssuedInvite{}, err
	}

	// 3. Generate random token
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invite token", slog.Any("error", err))
		return IssuedInvite{}, err
	}

	// 4. Store the fingerprint
	now := s.now().UTC()
	invite := domain.Invite{
		ID:               idx.NewAt(now).String(),
		TokenHash:        cryptox.FingerprintToken(token),
		PropertyID:       p.PropertyID,
		CreatedBy:        p.CallerID,
		IntendedIdentity: p.IntendedIdentity,
		DeliveryMethod:   p.DeliveryMethod,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl()),
	}

	if err := s.Store.Invites().CreateInvite(ctx, invite); err != nil {
		log.Error("failed to create invite",
			slog.String("invite_id", invite.ID),
			slog.Any("error", err),
		)
		return IssuedInvite{}, err
	}

	log.Info("invite issued",
		slog.String("invite_id", invite.ID),
		slog.String("property_id", invite.PropertyID),
		slog.String("delivery_method", string(invite.DeliveryMethod)),
		slog.Bool("addressed", invite.IntendedIdentity != ""),
		slog.Time("expires_at", invite.ExpiresAt),
	)

	return IssuedInvite{
		InviteID:   invite.ID,
		PropertyID: invite.PropertyID,
		Token:      token,
		ExpiresAt:  invite.ExpiresAt,
	}, nil
}

// PreviewInvite returns the public preview of the property behind a usable
// token. Every failure is ErrInvalidToken.
func (s *InviteService) PreviewInvite(ctx context.Context, token string) (domain.PropertyPreview, error) {
	log := slogx.FromContext(ctx)

	if !cryptox.WellFormedToken(token) {
		return domain.PropertyPreview{}, ErrInvalidToken
	}

	invite, err := s.Store.Invites().GetInviteByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PropertyPreview{}, ErrInvalidToken
		}
		log.Error("failed to fetch invite for preview", slog.Any("error", err))
		return domain.PropertyPreview{}, err
	}

	if !invite.Usable(s.now()) {
		return domain.PropertyPreview{}, ErrInvalidToken
	}

	property, err := s.Store.Properties().GetPropertyByID(ctx, invite.PropertyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("usable invite points at a missing property", slog.String("invite_id", invite.ID))
			return domain.PropertyPreview{}, ErrInvalidToken
		}
		log.Error("failed to fetch property for preview", slog.Any("error", err))
		return domain.PropertyPreview{}, err
	}

	return property.Preview(), nil
}

// AcceptInvite consumes a token and links the caller to its property in one
// transaction. Lock contention retries the whole transaction.
func (s *InviteService) AcceptInvite(ctx context.Context, p AcceptInviteParams) (AcceptResult, error) {
	log := slogx.FromContext(ctx)

	if p.IdentityID == "" {
		return AcceptResult{}, ErrInvalidInviteRequest
	}
	if !cryptox.WellFormedToken(p.Token) {
		return AcceptResult{}, ErrInvalidToken
	}
	hash := cryptox.FingerprintToken(p.Token)

	var lastErr error
	for attempt := 1; attempt <= maxAcceptAttempts; attempt++ {
		res, err := s.acceptOnce(ctx, hash, p)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrAlreadyExists) {
			return AcceptResult{}, err
		}

		lastErr = err
		log.Debug("invite accept conflicted, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if err := ctx.Err(); err != nil {
			return AcceptResult{}, err
		}
	}

	log.Warn("invite accept gave up after repeated conflicts", slog.Any("error", lastErr))
	return AcceptResult{}, ErrInvalidToken
}

func (s *InviteService) acceptOnce(ctx context.Context, hash string, p AcceptInviteParams) (AcceptResult, error) {
	log := slogx.FromContext(ctx)

	var res AcceptResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()

		// 1. Lock the invite row
		invite, err := tx.Invites().LockInviteByTokenHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		if invite.AcceptedAt != nil {
			// A retry of the caller's own accept is a success; anyone else
			// sees an unusable token.
			if invite.AcceptedBy != p.IdentityID {
				return ErrInvalidToken
			}
			link, err := tx.Links().GetActiveLink(ctx, p.IdentityID, invite.PropertyID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrInvalidToken
				}
				return err
			}
			res = AcceptResult{PropertyID: invite.PropertyID, LinkID: link.ID, AlreadyLinked: true}
			return nil
		}

		if !now.Before(invite.ExpiresAt) {
			return ErrInvalidToken
		}

		// 2. Recipient check
		if !invite.AddressedTo(p.IdentityID, p.IdentityEmail, p.IdentityEmailVerified) {
			if !p.OverrideRecipient {
				log.Info("invite accept by non-addressed identity",
					slog.String("invite_id", invite.ID),
				)
				return ErrWrongRecipient
			}
			log.Warn("invite_recipient_override",
				slog.String("invite_id", invite.ID),
				slog.String("property_id", invite.PropertyID),
				slog.String("identity_id", p.IdentityID),
			)
		}

		// 3. Existing active link: nothing to do, token stays usable
		link, err := tx.Links().GetActiveLink(ctx, p.IdentityID, invite.PropertyID)
		switch {
		case err == nil:
			res = AcceptResult{PropertyID: invite.PropertyID, LinkID: link.ID, AlreadyLinked: true}
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		// 4. Create the link and consume the token
		link = domain.TenantLink{
			ID:         idx.NewAt(now).String(),
			IdentityID: p.IdentityID,
			PropertyID: invite.PropertyID,
			InviteID:   invite.ID,
			IsActive:   true,
			Status:     domain.LinkActive,
			AcceptedAt: now,
			CreatedAt:  now,
		}
		if err := tx.Links().CreateLink(ctx, link); err != nil {
			return err
		}

		consumed, err := tx.Invites().ConsumeInvite(ctx, invite.ID, p.IdentityID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidToken
		}

		res = AcceptResult{PropertyID: invite.PropertyID, LinkID: link.ID}
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}

	if !res.AlreadyLinked {
		log.Info("invite accepted",
			slog.String("property_id", res.PropertyID),
			slog.String("link_id", res.LinkID),
		)
	}
	return res, nil
}

// ListInvites returns a property's invites to its owner.
func (s *InviteService) ListInvites(ctx context.Context, propertyID, callerID string) ([]domain.Invite, error) {
	if _, err := s.ownedProperty(ctx, propertyID, callerID); err != nil {
		return nil, err
	}

	invites, err := s.Store.Invites().ListInvitesByProperty(ctx, propertyID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list invites", slog.Any("error", err))
		return nil, err
	}
	return invites, nil
}

// RevokeInvite makes an unaccepted invite permanently unusable.
func (s *InviteService) RevokeInvite(ctx context.Context, inviteID, callerID string) error {
	log := slogx.FromContext(ctx)

	invite, err := s.Store.Invites().GetInviteByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		log.Error("failed to fetch invite", slog.Any("error", err))
		return err
	}

	if _, err := s.ownedProperty(ctx, invite.PropertyID, callerID); err != nil {
		return err
	}

	revoked, err := s.Store.Invites().RevokeInvite(ctx, invite.ID, s.now().UTC())
	if err != nil {
		log.Error("failed to revoke invite", slog.Any("error", err))
		return err
	}
	if !revoked {
		return ErrInvalidToken
	}

	log.Info("invite revoked", slog.String("invite_id", invite.ID))
	return nil
}

func (s *InviteService) ownedProperty(ctx context.Context, propertyID, callerID string) (domain.Property, error) {
	log := slogx.FromContext(ctx)

	property, err := s.Store.Properties().GetPropertyByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("invite operation on unknown property", slog.String("property_id", propertyID))
			return domain.Property{}, ErrInvalidResource
		}
		log.Error("failed to fetch property", slog.Any("error", err))
		return domain.Property{}, err
	}

	if property.OwnerID != callerID {
		log.Warn("invite operation by non-owner", slog.String("property_id", propertyID))
		return domain.Property{}, ErrNotOwner
	}
	return property, nil
}
