package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

const (
	callbackSessionName = "keyport_callback"
	callbackFlashKey    = "callback_url"
	callbackMaxAge      = 10 * 60

	// DefaultRedirect is where a sign-in lands without a remembered page.
	DefaultRedirect = "/"
)

// CallbackStore remembers the page an anonymous visitor asked for, so
// sign-in can send them back there.
type CallbackStore struct {
	store *sessions.CookieStore
}

// NewCallbackStore creates a CallbackStore whose cookie is signed and
// encrypted with keys derived from secret.
func NewCallbackStore(secret string, secure bool) (*CallbackStore, error) {
	hashKey, err := DeriveKey(secret, KeyPurposeCookieHash)
	if err != nil {
		return nil, err
	}
	encKey, err := DeriveKey(secret, KeyPurposeCookieEncrypt)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, encKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   callbackMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CallbackStore{store: store}, nil
}

// Remember stores target as the callback URL. Targets that are not local
// paths are ignored.
func (s *CallbackStore) Remember(w http.ResponseWriter, r *http.Request, target string) error {
	if !IsLocalPath(target) {
		return nil
	}
	sess, _ := s.store.Get(r, callbackSessionName)
	sess.Values[callbackFlashKey] = target
	return sess.Save(r, w)
}

// Pop returns the remembered callback URL and forgets it.
// DefaultRedirect is returned when nothing was remembered.
func (s *CallbackStore) Pop(w http.ResponseWriter, r *http.Request) string {
	sess, err := s.store.Get(r, callbackSessionName)
	if err != nil {
		return DefaultRedirect
	}
	target, _ := sess.Values[callbackFlashKey].(string)
	if target == "" {
		return DefaultRedirect
	}

	delete(sess.Values, callbackFlashKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)

	if !IsLocalPath(target) {
		return DefaultRedirect
	}
	return target
}

// IsLocalPath reports whether target is a path on this site.
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return false
	}
	return !strings.ContainsAny(target, "\\\r\n")
}
