package tenancy_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/app"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common helpers for tenancy service end-to-end tests. Each test gets its
 * own postgres and valkey containers; service instances run in process and
 * share both, the way replicas share them in production.
 */

const (
	idpIssuer = "https://idp.e2e.test"
	idpKeyID  = "e2e-key-001"
)

// backends are the shared dependencies of a cluster of service instances.
type backends struct {
	databaseURL string
	valkeyAddr  string
}

// startContainer runs req and returns host:port for the first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	return net.JoinHostPort(host, mappedPort.Port())
}

// setupBackends starts postgres and valkey for one test.
func setupBackends(t *testing.T) backends {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping end-to-end test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tenancy",
			"POSTGRES_PASSWORD": "tenancy",
			"POSTGRES_DB":       "tenancy",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	valkeyAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "valkey/valkey:8-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}, "6379")

	return backends{
		databaseURL: fmt.Sprintf("postgres://tenancy:tenancy@%s/tenancy?sslmode=disable", pgAddr),
		valkeyAddr:  valkeyAddr,
	}
}

// identityProvider mints access tokens the service instances accept.
type identityProvider struct {
	signer  jwtx.Signer
	keyFile string
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner(idpKeyID, priv)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "idp.pem")
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	return &identityProvider{signer: signer, keyFile: keyFile}
}

func (p *identityProvider) token(t *testing.T, subject, email string) string {
	t.Helper()

	tok, err := p.signer.Sign(jwtx.NewIdentityClaims(subject, email, nil, time.Hour, idpIssuer, nil, time.Now()))
	require.NoError(t, err)
	return tok
}

// startInstance boots one service instance against b and returns an SDK
// client pointed at it.
func startInstance(t *testing.T, b backends, idp *identityProvider, policyFile string) *invitesdk.Client {
	t.Helper()

	cfg := app.Config{
		Env:                  "test",
		LogLevel:             "warn",
		LogFormat:            "json",
		DatabaseDriver:       "postgres",
		DatabaseURL:          b.databaseURL,
		ValkeyAddr:           b.valkeyAddr,
		RateLimitPolicyFile:  policyFile,
		IdPIssuer:            idpIssuer,
		IdPPublicKeyFile:     idp.keyFile,
		IdPKeyID:             idpKeyID,
		InviteTTL:            time.Hour,
		InviteLinkBase:       "https://tenancy.e2e.test/invite",
		InviteRetention:      24 * time.Hour,
		ShutdownGracePeriod:  5 * time.Second,
		HousekeepingInterval: time.Hour,
	}

	application, err := app.New(cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- application.Serve(ln) }()
	t.Cleanup(func() {
		require.NoError(t, application.Shutdown())
		require.NoError(t, <-done)
	})

	baseURL := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/livez")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	client := invitesdk.NewClient(baseURL)
	client.RetryInterval = 10 * time.Millisecond
	return client
}

// writePolicyFile writes a TOML rate limit policy file and returns its path.
func writePolicyFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ratelimits.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// issueInvite bootstraps a landlord, registers a property and invites email.
func issueInvite(t *testing.T, client *invitesdk.Client, landlordAT, email string) (*invitesdk.IssueInviteResponse, string) {
	t.Helper()
	ctx := t.Context()

	_, err := client.BootstrapProfile(ctx, landlordAT, "landlord")
	require.NoError(t, err)

	prop, err := client.CreateProperty(ctx, landlordAT, invitesdk.CreatePropertyRequest{
		Name:        "Bondi Terrace",
		Category:    "house",
		AddressLine: "7 Campbell Parade",
		City:        "Bondi",
		Region:      "NSW",
	})
	require.NoError(t, err)

	issued, err := client.IssueInvite(ctx, landlordAT, invitesdk.IssueInviteRequest{
		PropertyID:       prop.ID,
		IntendedIdentity: email,
		DeliveryMethod:   "link",
	})
	require.NoError(t, err)
	return issued, prop.ID
}
