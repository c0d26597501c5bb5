package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwks"
	jwtinfra "github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the token authority that mints credential pairs.
type Issuer interface {
	Issue(u *domain.User) (*domain.SessionCredentialPair, error)
	Refresh(u *domain.User, renewalCredential string) (*domain.SessionCredentialPair, error)
}

// KeySet resolves signing keys by kid; backed by the JWKS cache.
type KeySet interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// UserStore is the slice of the user directory the refresh path needs.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Service mints, refreshes, and verifies session credentials.
//
// Revocation is deliberately stateless: logout only instructs the client to
// discard both cookies, so a captured identity assertion replayed outside
// the cookie channel stays valid until natural expiry. Accepted residual
// risk, not a bug.
type Service interface {
	Issue(ctx context.Context, u *domain.User) (*domain.SessionCredentialPair, *domain.UserContext, error)
	Refresh(ctx context.Context, renewalCredential string) (*domain.SessionCredentialPair, error)
	Verify(ctx context.Context, identityAssertion string) (*domain.UserContext, error)
}

// ServiceDeps wires the service's collaborators.
type ServiceDeps struct {
	Issuer   Issuer
	Keys     KeySet
	UserRepo UserStore
	// ExpectedIssuer is compared byte-for-byte against the iss claim; a
	// structurally identical pool with a different endpoint must fail.
	ExpectedIssuer string
}

type service struct {
	issuer         Issuer
	keys           KeySet
	userRepo       UserStore
	expectedIssuer string
	parser         *jwt.Parser
}

func NewService(deps ServiceDeps) Service {
	return &service{
		issuer:         deps.Issuer,
		keys:           deps.Keys,
		userRepo:       deps.UserRepo,
		expectedIssuer: deps.ExpectedIssuer,
		// RS256 only: anything else, including "none", is a downgrade attack.
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

func (s *service) Issue(ctx context.Context, u *domain.User) (*domain.SessionCredentialPair, *domain.UserContext, error) {
	pair, err := s.issuer.Issue(u)
	if err != nil {
		return nil, nil, err
	}
	return pair, userContext(u), nil
}

func (s *service) Refresh(ctx context.Context, renewalCredential string) (*domain.SessionCredentialPair, error) {
	if renewalCredential == "" {
		return nil, fmt.Errorf("missing renewal credential: %w", domain.ErrUnauthorized)
	}
	claims := &jwtinfra.RenewalClaims{}
	if _, err := s.parser.ParseWithClaims(renewalCredential, claims, s.keyfunc(ctx)); err != nil {
		return nil, classify(err)
	}
	if claims.Issuer != s.expectedIssuer {
		return nil, fmt.Errorf("issuer mismatch: %w", domain.ErrUnauthorized)
	}
	if claims.TokenUse != jwtinfra.TokenUseRenewal {
		return nil, fmt.Errorf("not a renewal credential: %w", domain.ErrUnauthorized)
	}

	u, err := s.userRepo.Get(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	// The authority's response is authoritative: if it ever rotates the
	// renewal credential, the rotated one is what reaches the client.
	return s.issuer.Refresh(u, renewalCredential)
}

func (s *service) Verify(ctx context.Context, identityAssertion string) (*domain.UserContext, error) {
	claims := &jwtinfra.IdentityClaims{}
	if _, err := s.parser.ParseWithClaims(identityAssertion, claims, s.keyfunc(ctx)); err != nil {
		return nil, classify(err)
	}
	if claims.Issuer != s.expectedIssuer {
		return nil, fmt.Errorf("issuer mismatch: %w", domain.ErrUnauthorized)
	}
	if claims.TokenUse != jwtinfra.TokenUseIdentity {
		return nil, fmt.Errorf("not an identity assertion: %w", domain.ErrUnauthorized)
	}
	return &domain.UserContext{
		UserID:        claims.Subject,
		Phone:         claims.Phone,
		Email:         claims.Email,
		Name:          claims.Name,
		Role:          claims.Role,
		Company:       claims.Company,
		PhoneVerified: claims.PhoneVerified,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// keyfunc reads the untrusted header only for the kid, then resolves the key
// through the cache; the signature check that follows is what trusts it.
func (s *service) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return s.keys.Key(ctx, kid)
	}
}

// classify maps parse failures onto the domain taxonomy with a
// human-readable sub-reason. Raw library errors never reach clients.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
	case errors.Is(err, jwks.ErrKeyNotFound):
		return fmt.Errorf("signing key not found: %w", domain.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("invalid signature: %w", domain.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("malformed token: %w", domain.ErrUnauthorized)
	default:
		return fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
}

func userContext(u *domain.User) *domain.UserContext {
	return &domain.UserContext{
		UserID:        u.UserID,
		Phone:         u.Phone,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Company:       u.Company,
		PhoneVerified: u.PhoneVerified,
		EmailVerified: u.EmailVerified,
	}
}
