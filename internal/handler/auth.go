package handler

import (
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// CredentialChecker verifies admin credentials.
type CredentialChecker interface {
	Authenticate(email, password string) (model.Identity, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(id model.Identity) (string, time.Time, error)
}

// AuthHandler exchanges admin credentials for a bearer token.
type AuthHandler struct {
	admins CredentialChecker
	tokens TokenIssuer
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(admins CredentialChecker, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{admins: admins, tokens: tokens}
}

// AdminToken handles POST /auth/admin/token
func (h *AuthHandler) AdminToken(w http.ResponseWriter, r *http.Request) {
	var req model.AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	id, err := h.admins.Authenticate(req.Email, req.Password)
	if err != nil {
		if isUnauthenticated(err) {
			logger.WithContext(r.Context()).Warn("admin login failed", "email", model.NormalizeEmail(req.Email))
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	token, exp, err := h.tokens.Issue(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TokenResponse{Token: token, ExpiresAt: exp})
}
