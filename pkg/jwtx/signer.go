package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner wraps an Ed25519, P-256 or RSA private key. The algorithm
// follows from the key type.
func NewSigner(kid string, key crypto.Signer) (Signer, error) {
	s := &keySigner{kid: kid, key: key}

	switch k := key.(type) {
	case ed25519.PrivateKey:
		s.method = jwt.SigningMethodEdDSA
		s.jwk = NewEd25519JWK(kid, "sig", s.method.Alg(), k.Public().(ed25519.PublicKey))
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, errors.New("jwtx: only P-256 ECDSA keys are supported")
		}
		s.method = jwt.SigningMethodES256
		s.jwk = NewES256JWK(kid, "sig", s.method.Alg(), &k.PublicKey)
	case *rsa.PrivateKey:
		s.method = jwt.SigningMethodRS256
		s.jwk = NewRSAJWK(kid, "sig", s.method.Alg(), &k.PublicKey)
	default:
		return nil, errors.New("jwtx: unsupported private key type")
	}

	return s, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign takes your claims and turns them into a signed JWT string.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
