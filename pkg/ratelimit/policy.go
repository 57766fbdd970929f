package ratelimit

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FailurePolicy decides what happens when the shared store is unreachable.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "open"
	FailClosed FailurePolicy = "closed"
)

// Operation names used by the HTTP layer.
const (
	OpInvitePreview    = "invite.preview"
	OpInviteAccept     = "invite.accept"
	OpInviteIssue      = "invite.issue"
	OpInviteManage     = "invite.manage"
	OpProfileBootstrap = "profile.bootstrap"
	OpSystemHealth     = "system.health"
)

// Policy is the limit for one operation.
type Policy struct {
	Limit   int
	Window  time.Duration
	Failure FailurePolicy
}

// Policies maps operation names to their limits.
type Policies map[string]Policy

func (p Policies) Clone() Policies { return maps.Clone(p) }

// DefaultPolicies returns the static per-operation table.
func DefaultPolicies() Policies {
	return Policies{
		// Anonymous, keyed by IP.
		OpInvitePreview: {Limit: 30, Window: time.Minute, Failure: FailOpen},
		OpInviteAccept:  {Limit: 20, Window: time.Minute, Failure: FailOpen},
		OpInviteIssue:   {Limit: 10, Window: time.Minute, Failure: FailOpen},
		OpInviteManage:  {Limit: 60, Window: time.Minute, Failure: FailOpen},
		// Role writes are the most sensitive call we expose.
		OpProfileBootstrap: {Limit: 5, Window: 15 * time.Minute, Failure: FailClosed},
		OpSystemHealth:     {Limit: 100, Window: time.Minute, Failure: FailOpen},
	}
}

// EnvPrefix returns the environment variable prefix for op, e.g.
// "invite.accept" becomes "INVITE_ACCEPT".
func EnvPrefix(op string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(op))
}

// ParsePolicyFromEnv reads RATELIMIT_{prefix}_REQUESTS,
// RATELIMIT_{prefix}_WINDOW_SEC and RATELIMIT_{prefix}_FAILURE on top of def.
// Invalid values are ignored.
func ParsePolicyFromEnv(prefix string, def Policy) Policy {
	p := def

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			p.Limit = n
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil && sec > 0 {
			p.Window = time.Duration(sec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_FAILURE"); val != "" {
		if f, ok := parseFailure(val); ok {
			p.Failure = f
		}
	}

	return p
}

// ApplyEnv returns a copy of p with environment overrides applied.
func (p Policies) ApplyEnv() Policies {
	out := p.Clone()
	for op, def := range out {
		out[op] = ParsePolicyFromEnv(EnvPrefix(op), def)
	}
	return out
}

type policyFile struct {
	Policies map[string]filePolicy `toml:"policies"`
}

type filePolicy struct {
	Limit   int    `toml:"limit"`
	Window  string `toml:"window"`
	Failure string `toml:"failure"`
}

// LoadPolicyFile merges a TOML policy file over base. Unknown keys are
// logged and ignored; malformed values fail the load.
//
//	[policies."invite.accept"]
//	limit = 20
//	window = "1m"
//	failure = "closed"
func LoadPolicyFile(path string, base Policies, logger *slog.Logger) (Policies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit policy file %s: %w", path, err)
	}

	var fc policyFile
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit policy file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		logger.Warn("unknown keys in rate limit policy file", "path", path, "keys", keys)
	}

	out := base.Clone()
	for op, fp := range fc.Policies {
		p := out[op]
		if p.Failure == "" {
			p.Failure = FailOpen
		}
		if fp.Limit != 0 {
			if fp.Limit < 0 {
				return nil, fmt.Errorf("policy %q: limit must be positive", op)
			}
			p.Limit = fp.Limit
		}
		if fp.Window != "" {
			w, err := time.ParseDuration(fp.Window)
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("policy %q: invalid window %q", op, fp.Window)
			}
			p.Window = w
		}
		if fp.Failure != "" {
			f, ok := parseFailure(fp.Failure)
			if !ok {
				return nil, fmt.Errorf("policy %q: invalid failure mode %q", op, fp.Failure)
			}
			p.Failure = f
		}
		if p.Limit <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("policy %q: limit and window are required", op)
		}
		out[op] = p
	}

	return out, nil
}

func parseFailure(s string) (FailurePolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return FailOpen, true
	case "closed":
		return FailClosed, true
	default:
		return "", false
	}
}
