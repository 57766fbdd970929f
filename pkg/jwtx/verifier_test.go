package jwtx_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newKeys(t *testing.T) map[string]crypto.Signer {
	t.Helper()

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return map[string]crypto.Signer{
		"EdDSA": edKey,
		"ES256": ecKey,
		"RS256": rsaKey,
	}
}

func TestVerifierAcceptsSupportedAlgorithms(t *testing.T) {
	now := time.Now()

	for alg, key := range newKeys(t) {
		t.Run(alg, func(t *testing.T) {
			signer, err := jwtx.NewSigner("kid-"+alg, key)
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())

			keys := jwtx.NewKeySet()
			require.NoError(t, keys.AddJWK(signer.PublicJWK()))

			v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: "idp", Audience: []string{"tenancy"}})

			raw, err := signer.Sign(jwtx.NewIdentityClaims(
				"user-1", "tenant@example.com", []string{"invites:write"},
				time.Minute, "idp", []string{"tenancy"}, now,
			))
			require.NoError(t, err)

			claims, err := v.Verify(raw)
			require.NoError(t, err)
			require.Equal(t, "user-1", claims.Subject)
			require.Equal(t, "tenant@example.com", claims.Email)
			require.Equal(t, []string{"invites:write"}, claims.Scopes)
		})
	}
}

func TestVerifierRejects(t *testing.T) {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("kid-1", edKey)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddJWK(signer.PublicJWK()))

	now := time.Now()
	v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: "idp", Audience: []string{"tenancy"}})

	sign := func(c jwtx.Claims) string {
		raw, err := signer.Sign(c)
		require.NoError(t, err)
		return raw
	}

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := v.Verify(sign(jwtx.NewIdentityClaims("u", "", nil, time.Minute, "other", []string{"tenancy"}, now)))
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := v.Verify(sign(jwtx.NewIdentityClaims("u", "", nil, time.Minute, "idp", []string{"billing"}, now)))
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := v.Verify(sign(jwtx.NewIdentityClaims("u", "", nil, time.Minute, "idp", []string{"tenancy"}, now.Add(-time.Hour))))
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := v.Verify(sign(jwtx.NewIdentityClaims("", "", nil, time.Minute, "idp", []string{"tenancy"}, now)))
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, otherKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		other, err := jwtx.NewSigner("kid-2", otherKey)
		require.NoError(t, err)

		raw, err := other.Sign(jwtx.NewIdentityClaims("u", "", nil, time.Minute, "idp", []string{"tenancy"}, now))
		require.NoError(t, err)

		_, err = v.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("algorithm disagrees with key", func(t *testing.T) {
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		impostor, err := jwtx.NewSigner("kid-1", rsaKey)
		require.NoError(t, err)

		raw, err := impostor.Sign(jwtx.NewIdentityClaims("u", "", nil, time.Minute, "idp", []string{"tenancy"}, now))
		require.NoError(t, err)

		_, err = v.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
