package http_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tenancyhttp "github.com/aussiebroadwan/tenancy/internal/tenancy/http"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const issuer = "https://idp.test"

type testEnv struct {
	srv    *httptest.Server
	client *invitesdk.Client
	signer jwtx.Signer
}

func newTestEnv(t *testing.T, rlStore ratelimit.Store, policies ratelimit.Policies, configure ...func(*tenancyhttp.Router)) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "tenancy.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("test-key", priv)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddJWK(signer.PublicJWK()))
	verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: issuer})

	if rlStore == nil {
		rlStore = ratelimit.NewMemoryStore()
	}
	if policies == nil {
		policies = ratelimit.DefaultPolicies()
	}
	limiter := ratelimit.New(rlStore, policies, ratelimit.WithLogger(slogx.Discard()))

	router := tenancyhttp.NewRouter(verifier, limiter, false, "test", st, slogx.Discard())
	router.InviteService = &service.InviteService{Store: st}
	router.ProfileService = &service.ProfileService{Store: st}
	router.PropertyService = &service.PropertyService{Store: st}
	router.LinkBase = "tenancy://invite"
	for _, fn := range configure {
		fn(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := invitesdk.NewClient(srv.URL)
	client.RetryInterval = time.Millisecond

	return &testEnv{srv: srv, client: client, signer: signer}
}

func (e *testEnv) token(t *testing.T, subject, email string, scopes ...string) string {
	t.Helper()

	tok, err := e.signer.Sign(jwtx.NewIdentityClaims(subject, email, scopes, time.Hour, issuer, nil, time.Now()))
	require.NoError(t, err)
	return tok
}

// landlordWithProperty bootstraps a landlord and registers one property.
func (e *testEnv) landlordWithProperty(t *testing.T, subject string) (string, string) {
	t.Helper()
	ctx := context.Background()

	at := e.token(t, subject, subject+"@example.com")
	_, err := e.client.BootstrapProfile(ctx, at, "landlord")
	require.NoError(t, err)

	prop, err := e.client.CreateProperty(ctx, at, invitesdk.CreatePropertyRequest{
		Name:        "Harbour View",
		Category:    "apartment",
		AddressLine: "12 Secret Lane",
		City:        "Sydney",
		Region:      "NSW",
	})
	require.NoError(t, err)
	return at, prop.ID
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestInviteLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	landlordAT, propertyID := env.landlordWithProperty(t, "landlord-1")

	issued, err := env.client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{
		PropertyID:       propertyID,
		IntendedIdentity: "Tenant@Example.com",
		DeliveryMethod:   "email",
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.True(t, strings.HasPrefix(issued.Link, "tenancy://invite?token="))

	linkToken, err := invitesdk.ParseInviteLink(issued.Link)
	require.NoError(t, err)
	require.Equal(t, issued.Token, linkToken)

	preview, err := env.client.Preview(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, invitesdk.ResourcePreview{Name: "Harbour View", Category: "apartment", CoarseLocation: "Sydney, NSW"}, *preview)

	tenantAT := env.token(t, "tenant-1", "tenant@example.com")
	res, err := env.client.Accept(ctx, tenantAT, invitesdk.AcceptRequest{Token: issued.Token})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, propertyID, res.ResourceID)
	require.False(t, res.AlreadyLinked)

	res, err = env.client.Accept(ctx, tenantAT, invitesdk.AcceptRequest{Token: issued.Token})
	require.NoError(t, err)
	require.True(t, res.AlreadyLinked, "retry by the same identity is a success")

	_, err = env.client.Preview(ctx, issued.Token)
	require.True(t, invitesdk.IsInvalidToken(err))

	boot, err := env.client.BootstrapProfile(ctx, tenantAT, "tenant")
	require.NoError(t, err)
	require.True(t, boot.RoleAssigned)
	require.Equal(t, "tenant", boot.Role)

	profile, err := env.client.GetProfile(ctx, tenantAT)
	require.NoError(t, err)
	require.Len(t, profile.Links, 1)
	require.Equal(t, propertyID, profile.Links[0].PropertyID)

	invites, err := env.client.ListInvites(ctx, landlordAT, propertyID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.Equal(t, "accepted", invites[0].Status)
	require.Equal(t, "tenant-1", invites[0].AcceptedBy)

	raw, err := json.Marshal(invites)
	require.NoError(t, err)
	require.NotContains(t, string(raw), issued.Token)
}

func TestPreviewFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	landlordAT, propertyID := env.landlordWithProperty(t, "landlord-1")

	used, err := env.client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{PropertyID: propertyID})
	require.NoError(t, err)
	_, err = env.client.Accept(ctx, env.token(t, "tenant-1", ""), invitesdk.AcceptRequest{Token: used.Token})
	require.NoError(t, err)

	revoked, err := env.client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{PropertyID: propertyID})
	require.NoError(t, err)
	list, err := env.client.ListInvites(ctx, landlordAT, propertyID)
	require.NoError(t, err)
	for _, inv := range list {
		if inv.Status == "pending" {
			require.NoError(t, env.client.RevokeInvite(ctx, landlordAT, inv.ID))
		}
	}

	var bodies []string
	for _, token := range []string{used.Token, revoked.Token, "unknown-token", "../not a token", ""} {
		resp, body := env.get(t, "/v1/invites/preview?token="+url.QueryEscape(token))
		require.Equal(t, http.StatusNotFound, resp.StatusCode, token)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
		bodies = append(bodies, string(body))
	}
	for _, b := range bodies[1:] {
		require.Equal(t, bodies[0], b)
	}
	require.JSONEq(t, `{"usable":false,"error":"invalid_token"}`, bodies[0])
}

func TestAcceptWrongRecipient(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	landlordAT, propertyID := env.landlordWithProperty(t, "landlord-1")
	issued, err := env.client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{
		PropertyID:       propertyID,
		IntendedIdentity: "someone@example.com",
	})
	require.NoError(t, err)

	otherAT := env.token(t, "tenant-2", "other@example.com")
	_, err = env.client.Accept(ctx, otherAT, invitesdk.AcceptRequest{Token: issued.Token})
	require.True(t, invitesdk.IsWrongRecipient(err))

	// The token is still usable for the intended recipient or an override.
	_, err = env.client.Preview(ctx, issued.Token)
	require.NoError(t, err)

	res, err := env.client.Accept(ctx, otherAT, invitesdk.AcceptRequest{Token: issued.Token, OverrideRecipient: true})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestAcceptRequiresVerifiedEmail(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	landlordAT, propertyID := env.landlordWithProperty(t, "landlord-1")
	issued, err := env.client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{
		PropertyID:       propertyID,
		IntendedIdentity: "tenant@example.com",
	})
	require.NoError(t, err)

	claims := jwtx.NewIdentityClaims("tenant-1", "tenant@example.com", nil, time.Hour, issuer, nil, time.Now())
	claims.EmailVerified = false
	unverifiedAT, err := env.signer.Sign(claims)
	require.NoError(t, err)

	_, err = env.client.Accept(ctx, unverifiedAT, invitesdk.AcceptRequest{Token: issued.Token})
	require.True(t, invitesdk.IsWrongRecipient(err), "an unverified email claim is not the recipient")

	verifiedAT := env.token(t, "tenant-1", "tenant@example.com")
	res, err := env.client.Accept(ctx, verifiedAT, invitesdk.AcceptRequest{Token: issued.Token})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestIssueInviteAuthorization(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	_, propertyID := env.landlordWithProperty(t, "landlord-1")
	otherAT, _ := env.landlordWithProperty(t, "landlord-2")

	_, err := env.client.IssueInvite(ctx, otherAT, invitesdk.IssueInviteRequest{PropertyID: propertyID})
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, invitesdk.ErrorCodeNotOwner, apiErr.Code)

	_, err = env.client.IssueInvite(ctx, otherAT, invitesdk.IssueInviteRequest{PropertyID: "missing"})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, invitesdk.ErrorCodeInvalidResource, apiErr.Code)

	_, err = env.client.IssueInvite(ctx, otherAT, invitesdk.IssueInviteRequest{PropertyID: propertyID, DeliveryMethod: "pigeon"})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, invitesdk.ErrorCodeInvalidRequest, apiErr.Code)

	_, err = env.client.IssueInvite(ctx, "not-a-jwt", invitesdk.IssueInviteRequest{PropertyID: propertyID})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, invitesdk.ErrorCodeUnauthorized, apiErr.Code)
}

func TestTenantCannotRegisterProperty(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.client.CreateProperty(context.Background(), env.token(t, "nobody", ""), invitesdk.CreatePropertyRequest{
		Name:     "Shed",
		Category: "shed",
	})
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, invitesdk.ErrorCodeForbidden, apiErr.Code)
}

func TestPreviewRateLimit(t *testing.T) {
	policies := ratelimit.DefaultPolicies()
	policies[ratelimit.OpInvitePreview] = ratelimit.Policy{Limit: 2, Window: time.Minute, Failure: ratelimit.FailOpen}
	env := newTestEnv(t, nil, policies)

	for range 2 {
		resp, _ := env.get(t, "/v1/invites/preview?token=abc")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, body := env.get(t, "/v1/invites/preview?token=abc")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get("Retry-After"))
	require.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	require.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	require.JSONEq(t, `{"success":false,"error":"rate_limited","retry_after":60}`, string(body))

	_, err := env.client.Preview(context.Background(), "abc")
	require.True(t, invitesdk.IsRateLimited(err))
}

func TestRateLimitStatusDoesNotConsume(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	at := env.token(t, "user-1", "")

	_, err := env.client.GetProfile(ctx, at)
	require.Error(t, err, "no profile yet, but the request still counts")

	for range 3 {
		st, err := env.client.RateLimitStatus(ctx, at, ratelimit.OpInviteManage)
		require.NoError(t, err)
		require.Equal(t, 60, st.Limit)
		require.Equal(t, 1, st.Used)
		require.Equal(t, 59, st.Remaining)
		require.Equal(t, 60, st.WindowSeconds)
	}

	_, err = env.client.RateLimitStatus(ctx, at, "made.up")
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Hit(context.Context, string, time.Time, time.Duration, int, string) (ratelimit.HitResult, error) {
	return ratelimit.HitResult{}, errDown
}

func (downStore) Count(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, errDown
}

func (downStore) Ping(context.Context) error { return errDown }

func TestLimiterStoreDown(t *testing.T) {
	env := newTestEnv(t, downStore{}, nil)
	ctx := context.Background()
	at := env.token(t, "user-1", "")

	// Fail-open operations keep working.
	resp, _ := env.get(t, "/v1/invites/preview?token=abc")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Role writes fail closed.
	_, err := env.client.BootstrapProfile(ctx, at, "landlord")
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Equal(t, invitesdk.ErrorCodeServiceUnavailable, apiErr.Code)

	resp, body := env.get(t, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health invitesdk.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, _ := env.get(t, "/livez")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.get(t, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health invitesdk.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)
}

func TestSwaggerDocs(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.get(t, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Swagger string `json:"swagger"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	require.Equal(t, "2.0", doc.Swagger)
	require.Equal(t, "Tenancy Invite Service API", doc.Info.Title)
	for _, path := range []string{
		"/v1/invites/preview",
		"/v1/invites",
		"/v1/invites/accept",
		"/v1/invites/{id}",
		"/v1/properties/{id}/invites",
		"/v1/profile/bootstrap",
		"/readyz",
	} {
		require.Contains(t, doc.Paths, path)
	}
}

func TestRequiredScopes(t *testing.T) {
	env := newTestEnv(t, nil, nil, func(r *tenancyhttp.Router) {
		r.RequiredScopes = []string{"tenancy"}
	})
	ctx := context.Background()

	_, err := env.client.GetProfile(ctx, env.token(t, "no-scope", "a@example.com"))
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, invitesdk.ErrorCodeInsufficientScope, apiErr.Code)

	at := env.token(t, "scoped", "b@example.com", "tenancy")
	_, err = env.client.BootstrapProfile(ctx, at, "landlord")
	require.NoError(t, err)

	// Preview stays anonymous.
	resp, _ := env.get(t, "/v1/invites/preview?token=nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
