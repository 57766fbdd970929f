package domain

import "time"

type LinkStatus string

const (
	LinkPending LinkStatus = "pending"
	LinkActive  LinkStatus = "active"
	LinkRevoked LinkStatus = "revoked"
)

// TenantLink ties an identity to a property. At most one active link exists
// per (identity, property).
type TenantLink struct {
	ID         string
	IdentityID string
	PropertyID string
	InviteID   string
	IsActive   bool
	Status     LinkStatus
	AcceptedAt time.Time
	CreatedAt  time.Time
}
