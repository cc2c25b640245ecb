package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clearbay/orgledger/internal/auth"
	"github.com/clearbay/orgledger/internal/http/middleware"
	"github.com/clearbay/orgledger/internal/httputil"
	"github.com/clearbay/orgledger/pkg/domain"
)

// Handler handles operator session endpoints.
type Handler struct {
	logger          *slog.Logger
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, passwordService *auth.PasswordService, sessionService *auth.SessionService) *Handler {
	return &Handler{
		logger:          logger,
		passwordService: passwordService,
		sessionService:  sessionService,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totp_code,omitempty"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates an operator and issues a session.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	userID, err := h.passwordService.Authenticate(r.Context(), req.Identifier, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidTOTPCode):
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrTOTPRequired):
			httputil.Error(w, http.StatusUnauthorized, "totp_code is required")
		case errors.Is(err, domain.ErrAccountLocked):
			httputil.Error(w, http.StatusForbidden, "account locked, try again later")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to log in")
		}
		return
	}

	tokens, err := h.sessionService.IssueSession(r.Context(), userID, auth.IssueSessionOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("session issue failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// Refresh refreshes an access token.
// POST /v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.sessionService.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) ||
			errors.Is(err, domain.ErrSessionExpired) ||
			errors.Is(err, domain.ErrSessionRevoked) {
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		h.logger.Error("refresh failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// Logout revokes a session.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.sessionService.RevokeSession(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Already revoked or never existed; logout is idempotent
			httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		h.logger.Error("logout failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogoutAll revokes all of the acting operator's sessions.
// POST /v1/auth/logout/all (protected)
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.sessionService.RevokeAllSessions(r.Context(), actorID); err != nil {
		h.logger.Error("logout all failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
