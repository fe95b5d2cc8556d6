package model

import (
	"encoding/json"
	"time"
)

// CeremonyKind describes the purpose of a pending WebAuthn ceremony.
type CeremonyKind string

const (
	CeremonyRegistration CeremonyKind = "registration"
	CeremonyAssertion    CeremonyKind = "assertion"
)

// Ceremony is the server-side state of a WebAuthn round trip between the
// options being handed to the browser and the browser posting the result back.
type Ceremony struct {
	ID        string       `json:"id"`
	Kind      CeremonyKind `json:"kind"`
	Email     string       `json:"email"`
	Challenge string       `json:"challenge"`

	// Registration ceremonies keep the relying party session data.
	SessionData json.RawMessage `json:"session_data,omitempty"`

	// Assertion ceremonies keep the custody request the passkey is stamping.
	RequestURL  string `json:"request_url,omitempty"`
	RequestBody string `json:"request_body,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the ceremony is past its deadline.
func (c *Ceremony) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
