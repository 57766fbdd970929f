package invitesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAttemptTimeout = 5 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryInterval  = 250 * time.Millisecond
)

// Client talks to the invite service. Authenticated calls take the caller's
// identity provider access token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// AttemptTimeout bounds each HTTP attempt.
	AttemptTimeout time.Duration

	// MaxAttempts is how often idempotent calls are tried on transport
	// errors and 5xx responses. 4xx and 429 are never retried.
	MaxAttempts int

	// RetryInterval paces consecutive attempts of one call.
	RetryInterval time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:        strings.TrimSuffix(baseURL, "/"),
		HTTPClient:     &http.Client{},
		AttemptTimeout: DefaultAttemptTimeout,
		MaxAttempts:    DefaultMaxAttempts,
		RetryInterval:  DefaultRetryInterval,
	}
}

// Preview returns the public preview behind token. Unusable tokens yield an
// error for which IsInvalidToken is true.
func (c *Client) Preview(ctx context.Context, token string) (*ResourcePreview, error) {
	var resp PreviewResponse
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/v1/invites/preview?token=" + url.QueryEscape(token),
		idempotent: true,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Usable || resp.ResourcePreview == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Code: ErrorCodeInvalidToken}
	}
	return resp.ResourcePreview, nil
}

// Accept links the caller to the invite's property. Accepting the same
// token again as the same identity succeeds, so it is retried like a read.
func (c *Client) Accept(ctx context.Context, accessToken string, req AcceptRequest) (*AcceptResponse, error) {
	var resp AcceptResponse
	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/v1/invites/accept",
		body:        req,
		accessToken: accessToken,
		idempotent:  true,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) IssueInvite(ctx context.Context, accessToken string, req IssueInviteRequest) (*IssueInviteResponse, error) {
	var resp IssueInviteResponse
	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/v1/invites",
		body:        req,
		accessToken: accessToken,
	}, http.StatusCreated, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListInvites(ctx context.Context, accessToken, propertyID string) ([]InviteSummary, error) {
	var resp ListInvitesResponse
	err := c.do(ctx, call{
		method:      http.MethodGet,
		path:        "/v1/properties/" + url.PathEscape(propertyID) + "/invites",
		accessToken: accessToken,
		idempotent:  true,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Invites, nil
}

func (c *Client) RevokeInvite(ctx context.Context, accessToken, inviteID string) error {
	return c.do(ctx, call{
		method:      http.MethodDelete,
		path:        "/v1/invites/" + url.PathEscape(inviteID),
		accessToken: accessToken,
	}, http.StatusNoContent, nil)
}

func (c *Client) CreateProperty(ctx context.Context, accessToken string, req CreatePropertyRequest) (*CreatePropertyResponse, error) {
	var resp CreatePropertyResponse
	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/v1/properties",
		body:        req,
		accessToken: accessToken,
	}, http.StatusCreated, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// BootstrapProfile creates the caller's profile and sets its role unless one
// is already set.
func (c *Client) BootstrapProfile(ctx context.Context, accessToken, role string) (*BootstrapProfileResponse, error) {
	var resp BootstrapProfileResponse
	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/v1/profile/bootstrap",
		body:        BootstrapProfileRequest{Role: role},
		accessToken: accessToken,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetProfile(ctx context.Context, accessToken string) (*ProfileResponse, error) {
	var resp ProfileResponse
	err := c.do(ctx, call{
		method:      http.MethodGet,
		path:        "/v1/profile",
		accessToken: accessToken,
		idempotent:  true,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RateLimitStatus reads the caller's window for operation without using it up.
func (c *Client) RateLimitStatus(ctx context.Context, accessToken, operation string) (*RateLimitStatusResponse, error) {
	var resp RateLimitStatusResponse
	err := c.do(ctx, call{
		method:      http.MethodGet,
		path:        "/v1/ratelimit/" + url.PathEscape(operation),
		accessToken: accessToken,
		idempotent:  true,
	}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type call struct {
	method      string
	path        string
	body        any
	accessToken string
	idempotent  bool
}

// do runs c, retrying idempotent calls on transport errors and 5xx.
func (c *Client) do(ctx context.Context, cl call, want int, target any) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempts := 1
	if cl.idempotent && c.MaxAttempts > 1 {
		attempts = c.MaxAttempts
	}
	interval := c.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	pacer := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := pacer.Wait(ctx); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		retry, err := c.attempt(ctx, cl, payload, want, target)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, cl call, payload []byte, want int, target any) (bool, error) {
	timeout := c.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.BaseURL+cl.path, body)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if cl.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cl.accessToken)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != want {
		err := parseErrorResponse(resp, data)
		return resp.StatusCode >= http.StatusInternalServerError, err
	}

	if target == nil || len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
