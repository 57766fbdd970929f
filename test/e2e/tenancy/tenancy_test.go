package tenancy_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGuardFlowAgainstCluster walks a tenant from a tapped link to a linked
// tenant profile, with the landlord and the tenant on different instances.
func TestGuardFlowAgainstCluster(t *testing.T) {
	b := setupBackends(t)
	idp := newIdentityProvider(t)
	landlordSide := startInstance(t, b, idp, "")
	tenantSide := startInstance(t, b, idp, "")

	landlordAT := idp.token(t, "landlord-e2e", "landlord@example.com")
	issued, propertyID := issueInvite(t, landlordSide, landlordAT, "tenant@example.com")

	preview, err := tenantSide.Preview(t.Context(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "Bondi Terrace", preview.Name)
	assert.Equal(t, "Bondi, NSW", preview.CoarseLocation)

	loop := invitesdk.NewLoop()
	t.Cleanup(loop.Close)
	bus := invitesdk.NewAuthBus(loop)
	suppression := &invitesdk.Suppression{}

	bootstrapper := &invitesdk.DefaultBootstrapper{
		Loop:        loop,
		API:         tenantSide,
		Suppression: suppression,
		Logger:      slogx.Discard(),
	}
	bootstrapper.Attach(bus)

	markers := invitesdk.NewFileMarkerStore(filepath.Join(t.TempDir(), "pending-invite.json"))

	guard := invitesdk.NewGuard(invitesdk.GuardConfig{
		Loop:         loop,
		API:          tenantSide,
		Markers:      markers,
		Suppression:  suppression,
		Bootstrapper: bootstrapper,
		Logger:       slogx.Discard(),
	})
	guard.Attach(bus)
	t.Cleanup(guard.Close)

	require.NoError(t, guard.HandleDeepLink(issued.Link))

	tenantAT := idp.token(t, "tenant-e2e", "tenant@example.com")
	bus.Publish(invitesdk.Identity{ID: "tenant-e2e", Email: "tenant@example.com", AccessToken: tenantAT})

	var snap invitesdk.Snapshot
	require.Eventually(t, func() bool {
		snap = guard.Snapshot()
		return snap.State == invitesdk.StateDone || snap.State == invitesdk.StateError
	}, 15*time.Second, 20*time.Millisecond)
	require.Equal(t, invitesdk.StateDone, snap.State, "guard failed: %v", snap.Err)
	assert.Equal(t, propertyID, snap.ResourceID)

	_, ok, err := markers.Load()
	require.NoError(t, err)
	assert.False(t, ok, "marker is cleared after a successful accept")

	profile, err := landlordSide.GetProfile(t.Context(), tenantAT)
	require.NoError(t, err)
	assert.Equal(t, "tenant", profile.Role)
	require.Len(t, profile.Links, 1)
	assert.Equal(t, propertyID, profile.Links[0].PropertyID)

	_, err = tenantSide.Preview(t.Context(), issued.Token)
	assert.True(t, invitesdk.IsInvalidToken(err), "accepted invites no longer preview")
}

// TestConcurrentAcceptAcrossInstances races the same tenant's accept on two
// instances. Both report success and exactly one link exists.
func TestConcurrentAcceptAcrossInstances(t *testing.T) {
	b := setupBackends(t)
	idp := newIdentityProvider(t)
	clients := []*invitesdk.Client{
		startInstance(t, b, idp, ""),
		startInstance(t, b, idp, ""),
	}

	landlordAT := idp.token(t, "landlord-race", "landlord@example.com")
	issued, propertyID := issueInvite(t, clients[0], landlordAT, "racer@example.com")
	tenantAT := idp.token(t, "tenant-race", "racer@example.com")

	var (
		wg      sync.WaitGroup
		results = make([]*invitesdk.AcceptResponse, len(clients))
		errs    = make([]error, len(clients))
	)
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Accept(t.Context(), tenantAT, invitesdk.AcceptRequest{Token: issued.Token})
		}()
	}
	wg.Wait()

	alreadyLinked := 0
	for i := range clients {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Success)
		assert.Equal(t, propertyID, results[i].ResourceID)
		if results[i].AlreadyLinked {
			alreadyLinked++
		}
	}
	assert.LessOrEqual(t, alreadyLinked, 1)

	profile, err := clients[1].GetProfile(t.Context(), tenantAT)
	require.NoError(t, err)
	assert.Len(t, profile.Links, 1)
}

// TestRateLimitSharedAcrossInstances checks that the preview budget is
// counted once for the cluster, not once per instance.
func TestRateLimitSharedAcrossInstances(t *testing.T) {
	b := setupBackends(t)
	idp := newIdentityProvider(t)
	policyFile := writePolicyFile(t, `
[policies."invite.preview"]
limit = 4
window = "1m"
`)
	a := startInstance(t, b, idp, policyFile)
	c := startInstance(t, b, idp, policyFile)

	landlordAT := idp.token(t, "landlord-rl", "landlord@example.com")
	issued, _ := issueInvite(t, a, landlordAT, "tenant@example.com")

	for i := range 4 {
		client := a
		if i%2 == 1 {
			client = c
		}
		_, err := client.Preview(t.Context(), issued.Token)
		require.NoError(t, err, "preview %d", i+1)
	}

	_, err := c.Preview(t.Context(), issued.Token)
	require.True(t, invitesdk.IsRateLimited(err), "fifth preview should be limited, got %v", err)

	var rl *invitesdk.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))

	status, err := a.RateLimitStatus(t.Context(), landlordAT, "invite.issue")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
}
