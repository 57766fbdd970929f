package domain

import (
	"strings"
	"time"
)

type DeliveryMethod string

const (
	DeliveryLink  DeliveryMethod = "link"
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
	DeliveryQR    DeliveryMethod = "qr"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryLink, DeliveryEmail, DeliverySMS, DeliveryQR:
		return true
	}
	return false
}

// Invite grants whoever presents the matching token a link to a property.
// Only the fingerprint of the token is stored.
type Invite struct {
	ID               string
	TokenHash        string
	PropertyID       string
	CreatedBy        string
	IntendedIdentity string // email or identity id, empty for open invites
	DeliveryMethod   DeliveryMethod
	CreatedAt        time.Time
	ExpiresAt        time.Time
	AcceptedAt       *time.Time
	AcceptedBy       string
}

// Usable reports whether the invite can still be accepted at now.
func (i Invite) Usable(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}

// Status is a display label for owners listing their invites.
func (i Invite) Status(now time.Time) string {
	switch {
	case i.AcceptedAt != nil:
		return "accepted"
	case !now.Before(i.ExpiresAt):
		return "expired"
	default:
		return "pending"
	}
}

// AddressedTo reports whether the invite may be accepted by the identity
// without a recipient override. Open invites match everyone. An email only
// matches once the identity provider has verified it.
func (i Invite) AddressedTo(identityID, email string, emailVerified bool) bool {
	if i.IntendedIdentity == "" {
		return true
	}
	if i.IntendedIdentity == identityID {
		return true
	}
	if !emailVerified || email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(i.IntendedIdentity), strings.TrimSpace(email))
}
