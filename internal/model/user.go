// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// User is the account record created at sign-up from the custody API response
// and carried in the session token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Wallet    string    `json:"wallet"`
	OrgID     string    `json:"orgId"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NormalizeEmail returns the canonical form an email is stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsernameFromEmail returns the local part of an email address.
// An address without "@" is returned unchanged.
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}

// Authenticator records the passkey a user signed up with.
type Authenticator struct {
	CredentialID string    `json:"credential_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Transports   []string  `json:"transports"`
	CreatedAt    time.Time `json:"created_at"`
}
