package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/config"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwks"
	jwtinfra "github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwt"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/cookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.test"

// ── in-memory repositories ──────────────────────────────────────────────────

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User // keyed by user_id
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
}

func (r *memUserRepo) GetByPhone(_ context.Context, phoneNumber string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phoneNumber {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("phone %s: %w", phoneNumber, domain.ErrNotFound)
}

func (r *memUserRepo) CreateIfAbsent(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUserRepo) MarkPhoneVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	u.PhoneVerified = true
	return nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*domain.LoginAttempt // keyed by phone
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{attempts: make(map[string]*domain.LoginAttempt)}
}

func (r *memAttemptRepo) Create(_ context.Context, a *domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts[a.Phone] = &cp
	return nil
}

func (r *memAttemptRepo) Get(_ context.Context, phoneNumber string) (*domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[phoneNumber]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("attempt %s: %w", phoneNumber, domain.ErrNotFound)
}

func (r *memAttemptRepo) Advance(_ context.Context, phoneNumber, attemptSession string, roundIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[phoneNumber]
	if !ok || a.AttemptSession != attemptSession {
		return fmt.Errorf("attempt superseded: %w", domain.ErrUnauthorized)
	}
	a.RoundIndex = roundIndex
	return nil
}

func (r *memAttemptRepo) Expire(_ context.Context, phoneNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, phoneNumber)
	return nil
}

type captureSMS struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSMS) SendSMS(_ context.Context, _, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *captureSMS) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	code := strings.TrimPrefix(s.messages[len(s.messages)-1], "Your verification code is ")
	require.Len(t, code, 6)
	return code
}

// ── test harness ────────────────────────────────────────────────────────────

type harness struct {
	router http.Handler
	sms    *captureSMS
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider := jwtinfra.NewProviderFromKeys(priv, &priv.PublicKey, testIssuer, time.Hour, 7*24*time.Hour)

	keySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(provider.JWKS())
	}))
	t.Cleanup(keySrv.Close)

	cfg := &config.Config{
		AppEnv:           "development",
		TokenIssuer:      testIssuer,
		JWKSURL:          keySrv.URL,
		IdentityTokenTTL: time.Hour,
		RenewalTokenTTL:  7 * 24 * time.Hour,
		DecisionCacheTTL: 5 * time.Minute,
		AllowedOrigins:   []string{"*"},
	}

	sms := &captureSMS{}
	deps := &Deps{
		UserRepo:    newMemUserRepo(),
		AttemptRepo: newMemAttemptRepo(),
		SMSSender:   sms,
		JWTProvider: provider,
		KeySet:      jwks.NewCache(keySrv.URL, time.Hour, keySrv.Client(), nil),
	}
	return &harness{router: NewRouter(cfg, deps), sms: sms}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func setCookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) (value, raw string) {
	t.Helper()
	for _, sc := range rec.Header().Values("Set-Cookie") {
		if v, ok := cookie.Extract(sc, name); ok {
			return v, sc
		}
	}
	t.Fatalf("Set-Cookie %q not found", name)
	return "", ""
}

// ── flows ───────────────────────────────────────────────────────────────────

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	phoneNumber := "+12025550123"

	// Step 1: request a code.
	rec := h.do(t, http.MethodPost, "/v1/auth/otp", map[string]string{"phone": phoneNumber}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var initiated struct {
		Success bool   `json:"success"`
		Session string `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initiated))
	assert.True(t, initiated.Success)
	require.NotEmpty(t, initiated.Session)
	code := h.sms.lastCode(t)

	// Step 2: answer correctly; cookies carry the credential pair.
	rec = h.do(t, http.MethodPost, "/v1/auth/otp/verify", map[string]string{
		"phone": phoneNumber, "session": initiated.Session, "code": code,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var verified struct {
		Success bool               `json:"success"`
		User    domain.UserContext `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	assert.True(t, verified.Success)
	assert.NotEmpty(t, verified.User.UserID)
	assert.Equal(t, phoneNumber, verified.User.Phone)
	assert.True(t, verified.User.PhoneVerified)

	identity, rawIdentity := setCookieValue(t, rec, cookie.IdentityCookie)
	renewal, rawRenewal := setCookieValue(t, rec, cookie.RenewalCookie)
	require.NotEmpty(t, identity)
	require.NotEmpty(t, renewal)
	assert.Contains(t, rawIdentity, "Max-Age=3600")
	assert.Contains(t, rawRenewal, "Max-Age=604800")
	assert.Contains(t, rawIdentity, "HttpOnly")
	assert.NotContains(t, rawIdentity, "Secure") // development config

	// Step 3: the identity cookie authorizes protected routes.
	rec = h.do(t, http.MethodGet, "/v1/auth/me", nil, map[string]string{
		"Cookie": cookie.IdentityCookie + "=" + identity,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Success bool              `json:"success"`
		User    map[string]string `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, verified.User.UserID, me.User["userId"])
	assert.Equal(t, phoneNumber, me.User["phoneNumber"])
	assert.Equal(t, domain.RoleUser, me.User["role"])

	// Step 4: a bearer header works the same and wins over any cookie.
	rec = h.do(t, http.MethodGet, "/v1/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + identity,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Step 5: the renewal cookie refreshes the pair.
	rec = h.do(t, http.MethodPost, "/v1/auth/refresh", nil, map[string]string{
		"Cookie": cookie.RenewalCookie + "=" + renewal,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	freshIdentity, _ := setCookieValue(t, rec, cookie.IdentityCookie)
	assert.NotEmpty(t, freshIdentity)

	// Step 6: logout expires both cookies.
	rec = h.do(t, http.MethodPost, "/v1/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, rawIdentity = setCookieValue(t, rec, cookie.IdentityCookie)
	_, rawRenewal = setCookieValue(t, rec, cookie.RenewalCookie)
	assert.Contains(t, rawIdentity, "Max-Age=0")
	assert.Contains(t, rawRenewal, "Max-Age=0")

	// Step 7: a renewal credential alone never authorizes a protected route.
	rec = h.do(t, http.MethodGet, "/v1/auth/me", nil, map[string]string{
		"Cookie": cookie.RenewalCookie + "=" + renewal,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"unauthorized"}`, rec.Body.String())
}

func TestLoginFlow_WrongCodeLockout(t *testing.T) {
	h := newHarness(t)
	phoneNumber := "+12025550199"

	rec := h.do(t, http.MethodPost, "/v1/auth/otp", map[string]string{"phone": phoneNumber}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var initiated struct {
		Session string `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initiated))
	code := h.sms.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	for i := 0; i < 3; i++ {
		rec = h.do(t, http.MethodPost, "/v1/auth/otp/verify", map[string]string{
			"phone": phoneNumber, "session": initiated.Session, "code": wrong,
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// The attempt is gone: even the right code no longer works.
	rec = h.do(t, http.MethodPost, "/v1/auth/otp/verify", map[string]string{
		"phone": phoneNumber, "session": initiated.Session, "code": code,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var denied struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &denied))
	assert.Equal(t, "unauthorized", denied.Error)
}

func TestLoginFlow_ValidationErrors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/auth/otp", map[string]string{"phone": "not-a-number"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Error)

	rec = h.do(t, http.MethodPost, "/v1/auth/otp/verify", map[string]string{"phone": "+12025550123"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_BodyFallback(t *testing.T) {
	h := newHarness(t)
	phoneNumber := "+12025550144"

	rec := h.do(t, http.MethodPost, "/v1/auth/otp", map[string]string{"phone": phoneNumber}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var initiated struct {
		Session string `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initiated))

	rec = h.do(t, http.MethodPost, "/v1/auth/otp/verify", map[string]string{
		"phone": phoneNumber, "session": initiated.Session, "code": h.sms.lastCode(t),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	renewal, _ := setCookieValue(t, rec, cookie.RenewalCookie)

	// No cookie on the request: the JSON body carries the credential.
	rec = h.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{"refreshToken": renewal}, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefresh_MissingCredential(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWKSEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc jwtinfra.JWKSDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "RSA", doc.Keys[0].Kty)
	assert.Equal(t, "RS256", doc.Keys[0].Alg)
	assert.NotEmpty(t, doc.Keys[0].Kid)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/health-check/ping", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
