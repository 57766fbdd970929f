package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
)

// InitVerifier loads the identity provider's public keys and returns a
// verifier for its access tokens.
//
// Key sources, in order of preference:
//   - IDP_JWKS_URL: fetched now and refreshed every IDP_JWKS_REFRESH until
//     ctx is done. Startup fails if the first fetch fails.
//   - IDP_PUBLIC_KEY_FILE: a single PEM public key registered under
//     IDP_KEY_ID.
func InitVerifier(ctx context.Context, cfg Config, logger *slog.Logger) (jwtx.Verifier, error) {
	keys := jwtx.NewKeySet()

	switch {
	case cfg.IdPJWKSURL != "":
		client := &http.Client{Timeout: 10 * time.Second}
		if err := jwtx.RefreshJWKS(ctx, client, cfg.IdPJWKSURL, keys, cfg.IdPJWKSRefresh, logger); err != nil {
			return nil, fmt.Errorf("failed to load identity provider keys: %w", err)
		}
		logger.Info("identity provider keys loaded",
			"jwks_url", cfg.IdPJWKSURL,
			"refresh", cfg.IdPJWKSRefresh,
		)

	case cfg.IdPPublicKeyFile != "":
		data, err := os.ReadFile(cfg.IdPPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read identity provider key: %w", err)
		}
		jwk, err := jwtx.ParsePublicKeyPEM(cfg.IdPKeyID, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity provider key: %w", err)
		}
		if err := keys.AddJWK(jwk); err != nil {
			return nil, fmt.Errorf("failed to register identity provider key: %w", err)
		}
		logger.Info("identity provider key loaded from file",
			"kid", jwk.Kid,
			"alg", jwk.Alg,
		)

	default:
		return nil, fmt.Errorf("no identity provider key source configured")
	}

	if cfg.IdPIssuer == "" {
		logger.Warn("IDP_ISSUER not set, token issuer is not checked")
	}

	return jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   cfg.IdPIssuer,
		Audience: cfg.IdPAudience,
		Leeway:   30 * time.Second,
	}), nil
}
