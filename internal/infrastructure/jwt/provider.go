package jwtinfra

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/config"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Token-use claim values. A renewal credential can never pass verification
// on the identity path because the claim is checked alongside the signature.
const (
	TokenUseIdentity = "id"
	TokenUseRenewal  = "refresh"
)

// IdentityClaims is the payload of the short-lived identity assertion.
type IdentityClaims struct {
	Phone         string `json:"phone_number"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"custom:role,omitempty"`
	Company       string `json:"custom:company,omitempty"`
	PhoneVerified bool   `json:"phone_number_verified"`
	EmailVerified bool   `json:"email_verified"`
	TokenUse      string `json:"token_use"`
	jwt.RegisteredClaims
}

// RenewalClaims is the payload of the long-lived renewal credential.
// It carries only a subject reference, no user claims.
type RenewalClaims struct {
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// Provider is the token authority: it signs both session credentials with a
// kid-stamped RS256 key and publishes the matching public key set.
type Provider struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	keyID       string
	issuer      string
	identityTTL time.Duration
	renewalTTL  time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.TokenIssuer, cfg.IdentityTokenTTL, cfg.RenewalTokenTTL), nil
}

// NewProviderFromKeys wires a provider from in-memory keys. Used by tests
// and by deployments that load keys from a secret store instead of disk.
func NewProviderFromKeys(privKey *rsa.PrivateKey, pubKey *rsa.PublicKey, issuer string, identityTTL, renewalTTL time.Duration) *Provider {
	return &Provider{
		privateKey:  privKey,
		publicKey:   pubKey,
		keyID:       deriveKeyID(pubKey),
		issuer:      issuer,
		identityTTL: identityTTL,
		renewalTTL:  renewalTTL,
	}
}

// KeyID returns the kid stamped into every token header.
func (p *Provider) KeyID() string { return p.keyID }

// Issuer returns the exact issuer URL stamped into every token.
func (p *Provider) Issuer() string { return p.issuer }

// Issue mints a fresh credential pair for the user. The identity assertion's
// validity window is strictly shorter than the renewal credential's.
func (p *Provider) Issue(u *domain.User) (*domain.SessionCredentialPair, error) {
	assertion, err := p.SignIdentity(u)
	if err != nil {
		return nil, err
	}
	renewal, err := p.SignRenewal(u.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.SessionCredentialPair{
		IdentityAssertion: assertion,
		RenewalCredential: renewal,
		IdentityTTL:       p.identityTTL,
		RenewalTTL:        p.renewalTTL,
	}, nil
}

// Refresh mints a new identity assertion for the subject. The renewal
// credential in the returned pair is authoritative: this authority echoes
// the original unchanged, but callers must use whatever comes back in case
// a future rotation policy issues a new one.
func (p *Provider) Refresh(u *domain.User, renewalCredential string) (*domain.SessionCredentialPair, error) {
	assertion, err := p.SignIdentity(u)
	if err != nil {
		return nil, err
	}
	return &domain.SessionCredentialPair{
		IdentityAssertion: assertion,
		RenewalCredential: renewalCredential,
		IdentityTTL:       p.identityTTL,
		RenewalTTL:        p.renewalTTL,
	}, nil
}

// SignIdentity signs the short-lived identity assertion carrying user claims.
func (p *Provider) SignIdentity(u *domain.User) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Phone:         u.Phone,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Company:       u.Company,
		PhoneVerified: u.PhoneVerified,
		EmailVerified: u.EmailVerified,
		TokenUse:      TokenUseIdentity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.identityTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return p.sign(claims)
}

// SignRenewal signs the long-lived renewal credential for the subject.
func (p *Provider) SignRenewal(userID string) (string, error) {
	now := time.Now()
	claims := RenewalClaims{
		TokenUse: TokenUseRenewal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.renewalTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return p.sign(claims)
}

func (p *Provider) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.keyID
	return token.SignedString(p.privateKey)
}

// JWKSDocument is the published signing-key set, in RFC 7517 shape.
type JWKSDocument struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS returns the authority's current public key set.
func (p *Provider) JWKS() JWKSDocument {
	return JWKSDocument{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: p.keyID,
		N:   base64.RawURLEncoding.EncodeToString(p.publicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.publicKey.E)).Bytes()),
	}}}
}

// deriveKeyID fingerprints the public key so key rotation produces a new kid
// without any coordination.
func deriveKeyID(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a well-formed RSA key.
		return "unknown"
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}
