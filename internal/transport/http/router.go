package http

import (
	"net/http"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/authorizer"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/challenge"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/session"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/config"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/cookie"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/transport/http/handler"
	appmiddleware "github.com/ElmerIwyze/WyzeSecureApi/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — the OTP endpoints are the
	// brute-force surface of the whole system.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	challengeSvc := challenge.NewService(challenge.ServiceDeps{
		AttemptRepo: deps.AttemptRepo,
		UserRepo:    deps.UserRepo,
		SMSSender:   deps.SMSSender,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Issuer:         deps.JWTProvider,
		Keys:           deps.KeySet,
		UserRepo:       deps.UserRepo,
		ExpectedIssuer: cfg.TokenIssuer,
	})
	authorizerSvc := authorizer.NewService(authorizer.ServiceDeps{
		Verifier: sessionSvc,
		CacheTTL: cfg.DecisionCacheTTL,
	})

	cookies := cookie.New(cfg.IdentityTokenTTL, cfg.RenewalTokenTTL, cfg.IsProduction())

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(challengeSvc, sessionSvc, cookies)
	jwksH := handler.NewJWKSHandler(deps.JWTProvider)

	r.Get("/.well-known/jwks.json", jwksH.KeySet)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/ping", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/otp", authH.InitiateOTP)
		r.With(sensitiveRL.Limit).Post("/auth/otp/verify", authH.VerifyOTP)
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/auth/logout", authH.Logout)

		// ── Authorized routes ────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authorize(authorizerSvc))

			r.Get("/auth/me", authH.Me)
		})
	})

	return r
}
