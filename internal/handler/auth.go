package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/cache"
	"github.com/keyport/keyport/internal/handler/dto"
	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/passkey"
	"github.com/keyport/keyport/internal/service"
	"github.com/keyport/keyport/internal/stamp"
)

// Ceremonies runs the WebAuthn ceremonies.
type Ceremonies interface {
	BeginRegistration(ctx context.Context, email string) (*passkey.RegistrationOptions, error)
	FinishRegistration(ctx context.Context, ceremonyID, email string, response []byte) (*passkey.RegistrationResult, error)
	BeginAssertion(ctx context.Context, email string, req stamp.SignedRequest) (*passkey.AssertionOptions, error)
	FinishAssertion(ctx context.Context, ceremonyID, email string, response []byte) (stamp.SignedRequest, error)
}

// WhoamiBuilder builds the unsigned whoami request a passkey stamps at sign-in.
type WhoamiBuilder interface {
	WhoamiRequest(organizationID string) (stamp.SignedRequest, error)
}

// Authorizer turns finished ceremonies into a user.
type Authorizer interface {
	Authorize(ctx context.Context, creds service.Credentials) (*model.User, error)
	Result(err error, redirectTo string) model.AuthResult
}

// AuthHandlerConfig holds the dependencies of an AuthHandler.
type AuthHandlerConfig struct {
	Ceremonies     Ceremonies
	Whoami         WhoamiBuilder
	Provider       Authorizer
	Sessions       *auth.SessionManager
	Callbacks      *auth.CallbackStore
	OrganizationID string
	Logger         *slog.Logger
}

// AuthHandler handles passkey sign-up, sign-in and the session cookie.
type AuthHandler struct {
	ceremonies     Ceremonies
	whoami         WhoamiBuilder
	provider       Authorizer
	sessions       *auth.SessionManager
	callbacks      *auth.CallbackStore
	organizationID string
	logger         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		ceremonies:     cfg.Ceremonies,
		whoami:         cfg.Whoami,
		provider:       cfg.Provider,
		sessions:       cfg.Sessions,
		callbacks:      cfg.Callbacks,
		organizationID: cfg.OrganizationID,
		logger:         logger,
	}
}

// BeginRegistration handles POST /api/auth/passkey/registration.
func (h *AuthHandler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	opts, err := h.ceremonies.BeginRegistration(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to begin passkey registration", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, CodeInternal, service.MessageUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// BeginAssertion handles POST /api/auth/passkey/assertion.
// The passkey is asked to stamp a whoami request against the parent organization.
func (h *AuthHandler) BeginAssertion(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	whoami, err := h.whoami.WhoamiRequest(h.organizationID)
	if err != nil {
		h.logger.Error("failed to build whoami request", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, CodeInternal, service.MessageUnexpected)
		return
	}

	opts, err := h.ceremonies.BeginAssertion(r.Context(), req.Email, whoami)
	if err != nil {
		h.logger.Error("failed to begin passkey assertion", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, CodeInternal, service.MessageUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// SignUp handles POST /api/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.FinishRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	registration, err := h.ceremonies.FinishRegistration(r.Context(), req.CeremonyID, req.Email, req.Credential)
	if err != nil {
		h.ceremonyFailed(w, "registration", req.Email, err)
		return
	}

	h.authorize(w, r, service.Credentials{
		Email:       req.Email,
		Challenge:   registration.Challenge,
		Attestation: &registration.Attestation,
	})
}

// SignIn handles POST /api/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.FinishRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	signed, err := h.ceremonies.FinishAssertion(r.Context(), req.CeremonyID, req.Email, req.Credential)
	if err != nil {
		h.ceremonyFailed(w, "assertion", req.Email, err)
		return
	}

	h.authorize(w, r, service.Credentials{
		Email:         req.Email,
		SignedRequest: &signed,
	})
}

// SignOut handles POST /api/auth/signout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	w.Header().Set("HX-Redirect", "/auth")
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Not signed in")
		return
	}
	writeJSON(w, http.StatusOK, dto.ToSessionResponse(session))
}

// authorize finishes sign-up or sign-in. Credential failures are reported
// in the result body with status 200, as the login form expects.
func (h *AuthHandler) authorize(w http.ResponseWriter, r *http.Request, creds service.Credentials) {
	user, err := h.provider.Authorize(r.Context(), creds)
	if err != nil {
		writeJSON(w, http.StatusOK, h.provider.Result(err, ""))
		return
	}

	token, expiresAt, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, h.provider.Result(err, ""))
		return
	}
	h.sessions.SetCookie(w, token, expiresAt)

	redirectTo := auth.DefaultRedirect
	if h.callbacks != nil {
		redirectTo = h.callbacks.Pop(w, r)
	}

	h.logger.Info("session_started",
		slog.String("user_id", user.ID),
		slog.String("organization_id", user.OrgID),
	)
	writeJSON(w, http.StatusOK, h.provider.Result(nil, redirectTo))
}

// ceremonyFailed reports a ceremony that could not be finished. A stale or
// mismatched ceremony is a failed sign-in; anything else is a bad request.
func (h *AuthHandler) ceremonyFailed(w http.ResponseWriter, kind, email string, err error) {
	if errors.Is(err, passkey.ErrCeremonyMismatch) ||
		errors.Is(err, passkey.ErrClientData) ||
		errors.Is(err, cache.ErrCeremonyNotFound) {
		h.logger.Warn("passkey ceremony rejected",
			slog.String("kind", kind),
			slog.String("email_hash", auth.QuickHash(email)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, model.AuthResult{
			Status: model.AuthStatusError,
			Error:  service.MessageInvalidCredentials,
		})
		return
	}

	h.logger.Warn("passkey ceremony failed",
		slog.String("kind", kind),
		slog.String("email_hash", auth.QuickHash(email)),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadRequest, CodeCeremony, "Passkey response could not be verified")
}
