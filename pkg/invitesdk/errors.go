package invitesdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ============================================================================
// API Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeNotOwner           = "not_owner"
	ErrorCodeInvalidResource    = "invalid_resource"
	ErrorCodeWrongRecipient     = "wrong_recipient"
	ErrorCodeInvalidRole        = "invalid_role"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodeInsufficientScope  = "insufficient_scope"
	ErrorCodeServiceUnavailable = "service_unavailable"
	ErrorCodeServerError        = "server_error"
)

// APIError is a non-2xx answer from the invite service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// RateLimitedError is returned for 429 responses.
type RateLimitedError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// IsInvalidToken reports whether err means the token is absent, expired,
// revoked or already used. The marker for such a token should be dropped.
func IsInvalidToken(err error) bool {
	return hasCode(err, ErrorCodeInvalidToken)
}

// IsWrongRecipient reports whether the invite was addressed to a different
// identity. The caller may confirm and retry with OverrideRecipient.
func IsWrongRecipient(err error) bool {
	return hasCode(err, ErrorCodeWrongRecipient)
}

// IsRateLimited reports whether err is a 429.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse converts a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	_ = json.Unmarshal(body, &errResp)

	if resp.StatusCode == http.StatusTooManyRequests {
		retry := errResp.RetryAfter
		if h, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && h > retry {
			retry = h
		}
		return &RateLimitedError{RetryAfter: time.Duration(retry) * time.Second}
	}

	if errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
