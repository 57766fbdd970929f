package ratelimit_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicies(t *testing.T) {
	p := ratelimit.DefaultPolicies()

	accept := p[ratelimit.OpInviteAccept]
	require.Equal(t, 20, accept.Limit)
	require.Equal(t, time.Minute, accept.Window)
	require.Equal(t, ratelimit.FailOpen, accept.Failure)

	bootstrap := p[ratelimit.OpProfileBootstrap]
	require.Equal(t, 5, bootstrap.Limit)
	require.Equal(t, 15*time.Minute, bootstrap.Window)
	require.Equal(t, ratelimit.FailClosed, bootstrap.Failure)
}

func TestEnvPrefix(t *testing.T) {
	require.Equal(t, "INVITE_ACCEPT", ratelimit.EnvPrefix("invite.accept"))
	require.Equal(t, "SYSTEM_HEALTH", ratelimit.EnvPrefix("system.health"))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RATELIMIT_INVITE_ACCEPT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_INVITE_ACCEPT_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_INVITE_ACCEPT_FAILURE", "closed")
	t.Setenv("RATELIMIT_INVITE_PREVIEW_REQUESTS", "-4")

	p := ratelimit.DefaultPolicies().ApplyEnv()

	require.Equal(t, ratelimit.Policy{Limit: 1000, Window: 30 * time.Second, Failure: ratelimit.FailClosed}, p[ratelimit.OpInviteAccept])
	require.Equal(t, 30, p[ratelimit.OpInvitePreview].Limit, "invalid values are ignored")
	require.Equal(t, 20, ratelimit.DefaultPolicies()[ratelimit.OpInviteAccept].Limit, "defaults are not mutated")
}

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratelimit.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPolicyFile(t *testing.T) {
	path := writePolicyFile(t, `
[policies."invite.accept"]
limit = 50
failure = "closed"

[policies."custom.op"]
limit = 3
window = "10s"
colour = "blue"
`)

	var buf bytes.Buffer
	p, err := ratelimit.LoadPolicyFile(path, ratelimit.DefaultPolicies(), slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	require.Equal(t, ratelimit.Policy{Limit: 50, Window: time.Minute, Failure: ratelimit.FailClosed}, p[ratelimit.OpInviteAccept])
	require.Equal(t, ratelimit.Policy{Limit: 3, Window: 10 * time.Second, Failure: ratelimit.FailOpen}, p["custom.op"])
	require.Contains(t, buf.String(), "colour")
}

func TestLoadPolicyFileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad window", "[policies.\"invite.accept\"]\nwindow = \"soon\"\n"},
		{"bad failure", "[policies.\"invite.accept\"]\nfailure = \"maybe\"\n"},
		{"new op without window", "[policies.\"other\"]\nlimit = 3\n"},
		{"not toml", "policies = [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ratelimit.LoadPolicyFile(writePolicyFile(t, tt.content), ratelimit.DefaultPolicies(), slog.New(slog.DiscardHandler))
			require.Error(t, err)
		})
	}
}
