package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/model"
)

func newPageHandler(t *testing.T) (*PageHandler, *auth.SessionManager) {
	t.Helper()
	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	return NewPageHandler("Keyport", sessions, discardLogger()), sessions
}

func TestPageHandler_Login(t *testing.T) {
	t.Parallel()

	h, _ := newPageHandler(t)
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth?email=ada@example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), `value="ada@example.com"`)
}

func TestPageHandler_LoginRedirectsSignedIn(t *testing.T) {
	t.Parallel()

	h, sessions := newPageHandler(t)
	token, _, err := sessions.Issue(&model.User{ID: "user-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: token})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPageHandler_Home(t *testing.T) {
	t.Parallel()

	h, _ := newPageHandler(t)

	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), &model.Session{
		User: model.User{ID: "user-1", Username: "ada", Wallet: "0xabc", OrgID: "org-1"},
	}))
	rec = httptest.NewRecorder()
	h.Home(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, ada")
	assert.Contains(t, rec.Body.String(), "0xabc")
}
