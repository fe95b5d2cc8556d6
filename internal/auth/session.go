package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyport/keyport/internal/model"
)

// Session defaults.
const (
	DefaultCookieName = "keyport_session"
	DefaultSessionTTL = 24 * time.Hour
	DefaultIssuer     = "keyport"
)

var (
	// ErrNoSession is returned when a request carries no session cookie.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned for tokens that fail verification.
	ErrInvalidSession = errors.New("invalid session")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Wallet    string `json:"wallet"`
	OrgID     string `json:"orgId"`
	AvatarURL string `json:"avatarUrl"`
	jwt.RegisteredClaims
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// SessionManager issues and verifies HS256 session tokens carried in a cookie.
type SessionManager struct {
	key        []byte
	issuer     string
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewSessionManager creates a SessionManager, deriving the signing key from cfg.Secret.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	key, err := DeriveKey(cfg.Secret, KeyPurposeSessionToken)
	if err != nil {
		return nil, err
	}
	m := &SessionManager{
		key:        key,
		issuer:     cfg.Issuer,
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		now:        time.Now,
	}
	if m.issuer == "" {
		m.issuer = DefaultIssuer
	}
	if m.ttl <= 0 {
		m.ttl = DefaultSessionTTL
	}
	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	return m, nil
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string {
	return m.cookieName
}

// Issue signs a session token for user.
func (m *SessionManager) Issue(user *model.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.New("session user is required")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl).Truncate(time.Second)
	claims := Claims{
		Email:     user.Email,
		Username:  user.Username,
		Wallet:    user.Wallet,
		OrgID:     user.OrgID,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a session token and returns the session it carries.
func (m *SessionManager) Parse(token string) (*model.Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	return &model.Session{
		User: model.User{
			ID:        claims.Subject,
			Email:     claims.Email,
			Username:  claims.Username,
			Wallet:    claims.Wallet,
			OrgID:     claims.OrgID,
			AvatarURL: claims.AvatarURL,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SetCookie writes the session cookie.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads and verifies the session cookie of r.
func (m *SessionManager) FromRequest(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return m.Parse(cookie.Value)
}
