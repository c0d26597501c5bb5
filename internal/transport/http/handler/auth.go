package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/challenge"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/application/session"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/cookie"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/pkg/validate"
	"github.com/ElmerIwyze/WyzeSecureApi/internal/transport/http/middleware"
)

// AuthHandler drives the passwordless login flow and the session lifecycle.
type AuthHandler struct {
	challengeSvc challenge.Service
	sessionSvc   session.Service
	cookies      *cookie.Codec
}

func NewAuthHandler(challengeSvc challenge.Service, sessionSvc session.Service, cookies *cookie.Codec) *AuthHandler {
	return &AuthHandler{challengeSvc: challengeSvc, sessionSvc: sessionSvc, cookies: cookies}
}

type initiateOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type initiateOTPResponse struct {
	Success bool   `json:"success"`
	Session string `json:"session"`
}

// InitiateOTP starts (or resumes) a login attempt and sends the code.
func (h *AuthHandler) InitiateOTP(w http.ResponseWriter, r *http.Request) {
	var req initiateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	attemptSession, err := h.challengeSvc.Initiate(r.Context(), req.Phone)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateOTPResponse{Success: true, Session: attemptSession})
}

type verifyOTPRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Session string `json:"session" validate:"required"`
	Code    string `json:"code" validate:"required"`
}

type userEnvelope struct {
	Success bool                `json:"success"`
	User    *domain.UserContext `json:"user"`
}

// VerifyOTP submits an answer; on terminal success it mints the credential
// pair and sets both session cookies.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	u, err := h.challengeSvc.Answer(r.Context(), req.Phone, req.Session, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	pair, userCtx, err := h.sessionSvc.Issue(r.Context(), u)
	if err != nil {
		httpError(w, err)
		return
	}
	h.setCookies(w, h.cookies.Render(pair.IdentityAssertion, pair.RenewalCredential))
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: userCtx})
}

// Refresh exchanges the renewal credential for a fresh identity assertion.
// The credential is read from the refreshToken cookie, with a JSON body
// fallback for non-cookie clients.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	renewal, ok := cookie.Extract(r.Header.Get("Cookie"), cookie.RenewalCookie)
	if !ok || renewal == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		renewal = body.RefreshToken
	}
	pair, err := h.sessionSvc.Refresh(r.Context(), renewal)
	if err != nil {
		httpError(w, err)
		return
	}
	h.setCookies(w, h.cookies.Render(pair.IdentityAssertion, pair.RenewalCredential))
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true})
}

// Logout revokes the session client-side: both cookies are expired. There is
// no server-side blacklist; tokens stay valid until natural expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.setCookies(w, h.cookies.RenderExpired())
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true})
}

// Me echoes the authorizer's user context for the authenticated caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := middleware.UserContextFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool              `json:"success"`
		User    map[string]string `json:"user"`
	}{Success: true, User: userCtx})
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, cookies []string) {
	for _, c := range cookies {
		w.Header().Add("Set-Cookie", c)
	}
}
