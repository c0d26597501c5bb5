package http

import (
	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/challenge"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/session"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwks"
	jwtinfra "github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwt"
)

// UserRepository combines the user-store views the challenge and session
// services each require.
type UserRepository interface {
	challenge.UserStore
	session.UserStore
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	AttemptRepo challenge.AttemptStore
	SMSSender   challenge.SMSSender
	JWTProvider *jwtinfra.Provider
	KeySet      *jwks.Cache
}
