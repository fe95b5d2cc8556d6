package model

import "time"

// Session is a verified session token.
type Session struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires"`
}

// Auth result statuses returned to the browser.
const (
	AuthStatusOK    = "ok"
	AuthStatusError = "error"
)

// AuthResult is the outcome of a sign-up or sign-in attempt.
type AuthResult struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
}
