package handler

import (
	"net/http"

	jwtinfra "github.com/ElmerIwyze/WyzeSecureApi/internal/infrastructure/jwt"
)

// JWKSHandler publishes the token authority's public signing-key set.
type JWKSHandler struct {
	provider *jwtinfra.Provider
}

func NewJWKSHandler(provider *jwtinfra.Provider) *JWKSHandler {
	return &JWKSHandler{provider: provider}
}

func (h *JWKSHandler) KeySet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.JWKS())
}
