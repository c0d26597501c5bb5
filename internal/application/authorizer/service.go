package authorizer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/cookie"
)

// DeniedNoToken is the reason reported when a request carries no identity
// assertion at all (no bearer header, no idToken cookie).
const DeniedNoToken = "no token provided"

// deniedGeneric is the only reason ever attached to a failed verification.
// The real failure detail goes to logs so probing clients learn nothing
// about signing or claim internals.
const deniedGeneric = "unauthorized"

// Decision is the allow/deny outcome plus the user context the gateway
// forwards downstream. Context values are string-typed because the
// transport layer constrains context values to strings.
type Decision struct {
	Allowed bool
	Context map[string]string
	Reason  string
}

// Verifier is the identity-assertion verification path.
type Verifier interface {
	Verify(ctx context.Context, identityAssertion string) (*domain.UserContext, error)
}

// Service turns inbound request credentials into an authorization decision.
// An Allow is scoped to the whole API surface, not per-method; finer-grained
// authorization is a downstream concern.
type Service interface {
	Authorize(ctx context.Context, authorizationHeader, cookieHeader string) Decision
}

// ServiceDeps wires the authorizer. Now may be nil (time.Now).
type ServiceDeps struct {
	Verifier Verifier
	// CacheTTL bounds how long a successful decision is reused without
	// re-verifying. Entries expire by time only, so a revoked-but-unexpired
	// token stays authorizable for up to this window. Accepted trade-off.
	CacheTTL time.Duration
	Now      func() time.Time
}

type cacheEntry struct {
	context   map[string]string
	expiresAt time.Time
}

type service struct {
	verifier Verifier
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		verifier: deps.Verifier,
		cacheTTL: deps.CacheTTL,
		now:      now,
		cache:    make(map[string]cacheEntry),
	}
}

func (s *service) Authorize(ctx context.Context, authorizationHeader, cookieHeader string) Decision {
	token := extractToken(authorizationHeader, cookieHeader)
	if token == "" {
		return Decision{Reason: DeniedNoToken}
	}

	if userCtx, ok := s.cached(token); ok {
		return Decision{Allowed: true, Context: userCtx}
	}

	userCtx, err := s.verifier.Verify(ctx, token)
	if err != nil {
		slog.Warn("authorization denied", "err", err)
		return Decision{Reason: deniedGeneric}
	}

	values := userCtx.Strings()
	s.store(token, values)
	return Decision{Allowed: true, Context: values}
}

// extractToken checks the explicit bearer header first, then the cookie.
func extractToken(authorizationHeader, cookieHeader string) string {
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimPrefix(authorizationHeader, "Bearer ")
	}
	if v, ok := cookie.Extract(cookieHeader, cookie.IdentityCookie); ok && v != "" {
		return v
	}
	return ""
}

func (s *service) cached(token string) (map[string]string, bool) {
	s.mu.RLock()
	e, ok := s.cache[token]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.cache, token)
		s.mu.Unlock()
		return nil, false
	}
	return e.context, true
}

func (s *service) store(token string, values map[string]string) {
	if s.cacheTTL <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	// Opportunistic sweep keeps the map bounded without a background goroutine.
	if len(s.cache) >= 1024 {
		for k, e := range s.cache {
			if now.After(e.expiresAt) {
				delete(s.cache, k)
			}
		}
	}
	s.cache[token] = cacheEntry{context: values, expiresAt: now.Add(s.cacheTTL)}
	s.mu.Unlock()
}
