package handler

import (
	"log/slog"
	"net/http"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/web"
)

// PageHandler renders the HTML pages.
type PageHandler struct {
	appName  string
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(appName string, sessions *auth.SessionManager, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{appName: appName, sessions: sessions, logger: logger}
}

// Login handles GET /auth. Signed-in visitors are sent home.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.FromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := web.LoginPage(web.LoginData{
		AppName: h.appName,
		Email:   r.URL.Query().Get("email"),
	})
	if err := web.Render(w, http.StatusOK, page); err != nil {
		h.logger.Error("failed to render login page", slog.String("error", err.Error()))
	}
}

// Home handles GET /. It must run behind RequirePage.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	page := web.HomePage(web.HomeData{AppName: h.appName, User: user})
	if err := web.Render(w, http.StatusOK, page); err != nil {
		h.logger.Error("failed to render home page", slog.String("error", err.Error()))
	}
}
