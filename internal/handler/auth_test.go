package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/cache"
	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/handler/dto"
	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/passkey"
	"github.com/keyport/keyport/internal/service"
	"github.com/keyport/keyport/internal/stamp"
)

const testSecret = "handler-test-secret-0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCeremonies struct {
	finishErr   error
	assertedReq stamp.SignedRequest
	response    []byte
}

func (f *fakeCeremonies) BeginRegistration(_ context.Context, email string) (*passkey.RegistrationOptions, error) {
	return &passkey.RegistrationOptions{CeremonyID: "reg-" + email}, nil
}

func (f *fakeCeremonies) FinishRegistration(_ context.Context, ceremonyID, email string, response []byte) (*passkey.RegistrationResult, error) {
	f.response = response
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	return &passkey.RegistrationResult{
		Challenge:   "challenge",
		Attestation: custody.Attestation{CredentialID: "cred"},
	}, nil
}

func (f *fakeCeremonies) BeginAssertion(_ context.Context, email string, req stamp.SignedRequest) (*passkey.AssertionOptions, error) {
	f.assertedReq = req
	return &passkey.AssertionOptions{CeremonyID: "assert-" + email}, nil
}

func (f *fakeCeremonies) FinishAssertion(_ context.Context, ceremonyID, email string, response []byte) (stamp.SignedRequest, error) {
	f.response = response
	if f.finishErr != nil {
		return stamp.SignedRequest{}, f.finishErr
	}
	return stamp.SignedRequest{URL: "https://api.turnkey.com/public/v1/query/whoami", Body: "{}"}, nil
}

type fakeWhoami struct{ orgID string }

func (f *fakeWhoami) WhoamiRequest(organizationID string) (stamp.SignedRequest, error) {
	f.orgID = organizationID
	return stamp.SignedRequest{URL: "https://api.turnkey.com/public/v1/query/whoami", Body: `{"organizationId":"` + organizationID + `"}`}, nil
}

type fakeAuthorizer struct {
	*service.CredentialsProvider
	creds service.Credentials
	user  *model.User
	err   error
}

func (f *fakeAuthorizer) Authorize(_ context.Context, creds service.Credentials) (*model.User, error) {
	f.creds = creds
	return f.user, f.err
}

type authFixture struct {
	handler    *AuthHandler
	ceremonies *fakeCeremonies
	whoami     *fakeWhoami
	provider   *fakeAuthorizer
	sessions   *auth.SessionManager
	callbacks  *auth.CallbackStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secret: testSecret})
	require.NoError(t, err)
	callbacks, err := auth.NewCallbackStore(testSecret, false)
	require.NoError(t, err)

	f := &authFixture{
		ceremonies: &fakeCeremonies{},
		whoami:     &fakeWhoami{},
		provider: &fakeAuthorizer{
			CredentialsProvider: service.NewCredentialsProvider(nil, discardLogger()),
			user:                &model.User{ID: "user-1", Email: "ada@example.com", OrgID: "sub-org-1", Wallet: "0xabc"},
		},
		sessions:  sessions,
		callbacks: callbacks,
	}
	f.handler = NewAuthHandler(AuthHandlerConfig{
		Ceremonies:     f.ceremonies,
		Whoami:         f.whoami,
		Provider:       f.provider,
		Sessions:       sessions,
		Callbacks:      callbacks,
		OrganizationID: "parent-org",
		Logger:         discardLogger(),
	})
	return f
}

func postJSON(handler http.HandlerFunc, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) model.AuthResult {
	t.Helper()
	var result model.AuthResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func finishBody(email string) string {
	return fmt.Sprintf(`{"email":%q,"ceremonyId":"c-1","credential":{"id":"abc"}}`, email)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestAuthHandler_BeginRegistration(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.BeginRegistration, "/api/auth/passkey/registration", `{"email":"ada@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var opts passkey.RegistrationOptions
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&opts))
	assert.Equal(t, "reg-ada@example.com", opts.CeremonyID)
}

func TestAuthHandler_NormalizesEmail(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)

	rec := postJSON(f.handler.BeginRegistration, "/api/auth/passkey/registration", `{"email":" Ada@Example.COM "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reg passkey.RegistrationOptions
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reg))
	assert.Equal(t, "reg-ada@example.com", reg.CeremonyID)

	rec = postJSON(f.handler.BeginAssertion, "/api/auth/passkey/assertion", `{"email":"ADA@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var assertion passkey.AssertionOptions
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&assertion))
	assert.Equal(t, "assert-ada@example.com", assertion.CeremonyID)

	rec = postJSON(f.handler.SignIn, "/api/auth/signin", finishBody("Ada@Example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", f.provider.creds.Email)
}

func TestAuthHandler_BeginRegistration_InvalidEmail(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.BeginRegistration, "/api/auth/passkey/registration", `{"email":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MessageInvalidEmail, decodeError(t, rec).Error.Message)
}

func TestAuthHandler_BeginAssertion_StampsParentWhoami(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.BeginAssertion, "/api/auth/passkey/assertion", `{"email":"ada@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "parent-org", f.whoami.orgID)
	assert.JSONEq(t, `{"organizationId":"parent-org"}`, f.ceremonies.assertedReq.Body)
}

func TestAuthHandler_SignUp(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.SignUp, "/api/auth/signup", finishBody("ada@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.AuthResult{Status: model.AuthStatusOK, RedirectTo: "/"}, decodeResult(t, rec))
	assert.JSONEq(t, `{"id":"abc"}`, string(f.ceremonies.response))

	assert.Equal(t, "challenge", f.provider.creds.Challenge)
	require.NotNil(t, f.provider.creds.Attestation)
	assert.Equal(t, "cred", f.provider.creds.Attestation.CredentialID)
	assert.Nil(t, f.provider.creds.SignedRequest)

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	session, err := f.sessions.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, "0xabc", session.User.Wallet)
}

func TestAuthHandler_SignIn_UsesCallbackURL(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)

	remember := httptest.NewRecorder()
	require.NoError(t, f.callbacks.Remember(remember, httptest.NewRequest(http.MethodGet, "/", nil), "/?tab=wallet"))
	callback := remember.Result().Cookies()[0]

	rec := postJSON(f.handler.SignIn, "/api/auth/signin", finishBody("ada@example.com"), callback)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/?tab=wallet", decodeResult(t, rec).RedirectTo)
	require.NotNil(t, f.provider.creds.SignedRequest)
	assert.Equal(t, "ada@example.com", f.provider.creds.Email)
	assert.NotNil(t, sessionCookie(t, rec))
}

func TestAuthHandler_InvalidCredentials(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	f.provider.user = nil
	f.provider.err = service.ErrInvalidCredentials

	rec := postJSON(f.handler.SignIn, "/api/auth/signin", finishBody("ada@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.AuthResult{Status: model.AuthStatusError, Error: service.MessageInvalidCredentials}, decodeResult(t, rec))
	assert.Nil(t, sessionCookie(t, rec))
}

func TestAuthHandler_UnexpectedError(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	f.provider.user = nil
	f.provider.err = errors.New("database on fire")

	rec := postJSON(f.handler.SignUp, "/api/auth/signup", finishBody("ada@example.com"))

	assert.Equal(t, model.AuthResult{Status: model.AuthStatusError, Error: service.MessageUnexpected}, decodeResult(t, rec))
}

func TestAuthHandler_CeremonyFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"mismatch", fmt.Errorf("%w: email does not match", passkey.ErrCeremonyMismatch), http.StatusOK},
		{"client data", fmt.Errorf("%w: challenge mismatch", passkey.ErrClientData), http.StatusOK},
		{"replayed", fmt.Errorf("load ceremony: %w", cache.ErrCeremonyNotFound), http.StatusOK},
		{"unparseable", errors.New("parse assertion: bad json"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newAuthFixture(t)
			f.ceremonies.finishErr = tt.err

			rec := postJSON(f.handler.SignIn, "/api/auth/signin", finishBody("ada@example.com"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Nil(t, sessionCookie(t, rec))
			assert.Empty(t, f.provider.creds.Email, "provider must not run")
		})
	}
}

func TestAuthHandler_FinishValidation(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.SignUp, "/api/auth/signup", `{"email":"ada@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	response := decodeError(t, rec)
	assert.Equal(t, CodeValidation, response.Error.Code)
	assert.Contains(t, response.Error.Fields, "ceremonyId")
	assert.Contains(t, response.Error.Fields, "credential")
}

func TestAuthHandler_SignOut(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := postJSON(f.handler.SignOut, "/api/auth/signout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("HX-Redirect"))
	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestAuthHandler_Session(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Session(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := &model.Session{User: model.User{ID: "user-1", Email: "ada@example.com"}}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), session))
	rec = httptest.NewRecorder()
	f.handler.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response dto.SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ada@example.com", response.User.Email)
}
