package invitesdk

import "time"

// ============================================================================
// Error Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the error body written by every endpoint.
type ErrorResponse struct {
	Success bool `json:"success"`

	// Error is one of the ErrorCode* constants
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty"`

	// RetryAfter is set on rate_limited responses, in seconds
	RetryAfter int `json:"retry_after,omitempty"`
}

// ============================================================================
// Invite Types
// ============================================================================

// ResourcePreview is the public subset of a property visible through a
// usable token.
type ResourcePreview struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	CoarseLocation string `json:"coarse_location"`
}

// PreviewResponse is returned from GET /v1/invites/preview.
type PreviewResponse struct {
	Usable          bool             `json:"usable"`
	ResourcePreview *ResourcePreview `json:"resource_preview,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// IssueInviteRequest is the body of POST /v1/invites.
type IssueInviteRequest struct {
	PropertyID string `json:"property_id"`

	// IntendedIdentity is an email or identity id. Empty issues an open
	// invite that anyone holding the token may accept.
	IntendedIdentity string `json:"intended_identity,omitempty"`

	// DeliveryMethod is one of link, email, sms, qr. Defaults to link.
	DeliveryMethod string `json:"delivery_method,omitempty"`
}

// IssueInviteResponse carries the raw token. The server never shows it again.
type IssueInviteResponse struct {
	InviteID  string    `json:"invite_id"`
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcceptRequest is the body of POST /v1/invites/accept.
type AcceptRequest struct {
	Token string `json:"token"`

	// OverrideRecipient confirms accepting an invite addressed to someone
	// else after a wrong_recipient answer.
	OverrideRecipient bool `json:"override_recipient,omitempty"`
}

// AcceptResponse is returned from POST /v1/invites/accept on success and on
// domain failures.
type AcceptResponse struct {
	Success          bool   `json:"success"`
	ResourceID       string `json:"resource_id,omitempty"`
	AlreadyLinked    bool   `json:"already_linked,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// InviteSummary is an invite as shown to the owner of its property. It never
// contains the token.
type InviteSummary struct {
	ID               string     `json:"id"`
	PropertyID       string     `json:"property_id"`
	Status           string     `json:"status"`
	DeliveryMethod   string     `json:"delivery_method"`
	IntendedIdentity string     `json:"intended_identity,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy       string     `json:"accepted_by,omitempty"`
}

// ListInvitesResponse is returned from GET /v1/properties/{id}/invites.
type ListInvitesResponse struct {
	Invites []InviteSummary `json:"invites"`
}

// ============================================================================
// Property Types
// ============================================================================

// CreatePropertyRequest is the body of POST /v1/properties.
type CreatePropertyRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	AddressLine string `json:"address_line,omitempty"`
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
}

type CreatePropertyResponse struct {
	ID string `json:"id"`
}

// ============================================================================
// Profile Types
// ============================================================================

// BootstrapProfileRequest is the body of POST /v1/profile/bootstrap.
type BootstrapProfileRequest struct {
	Role string `json:"role"`
}

// BootstrapProfileResponse reports the caller's role after bootstrap.
// RoleAssigned is false when an earlier bootstrap already set the role.
type BootstrapProfileResponse struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	RoleAssigned bool   `json:"role_assigned"`
}

type LinkSummary struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// ProfileResponse is returned from GET /v1/profile.
type ProfileResponse struct {
	ID    string        `json:"id"`
	Email string        `json:"email,omitempty"`
	Role  string        `json:"role"`
	Links []LinkSummary `json:"links"`
}

// ============================================================================
// System Types
// ============================================================================

// RateLimitStatusResponse is the caller's current window for an operation.
type RateLimitStatusResponse struct {
	Operation     string `json:"operation"`
	Limit         int    `json:"limit"`
	Used          int    `json:"used"`
	Remaining     int    `json:"remaining"`
	WindowSeconds int    `json:"window_seconds"`
}

// HealthResponse is returned from /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database    string `json:"database"`
	RateLimiter string `json:"rate_limiter"`
}
