package dto

import (
	"encoding/json"
	"time"

	"github.com/keyport/keyport/internal/model"
)

// EmailRequest starts a passkey ceremony.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Normalize puts the email in its canonical form.
func (r *EmailRequest) Normalize() {
	r.Email = model.NormalizeEmail(r.Email)
}

// FinishRequest carries the browser's credential back to the server.
type FinishRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	CeremonyID string          `json:"ceremonyId" validate:"required"`
	Credential json.RawMessage `json:"credential" validate:"required"`
}

// Normalize puts the email in its canonical form.
func (r *FinishRequest) Normalize() {
	r.Email = model.NormalizeEmail(r.Email)
}

// UserResponse is the signed-in user as exposed to the browser.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Wallet    string `json:"wallet"`
	OrgID     string `json:"orgId"`
	AvatarURL string `json:"avatarUrl"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	User    UserResponse `json:"user"`
	Expires time.Time    `json:"expires"`
}

// ToUserResponse converts a User model to its DTO.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Wallet:    u.Wallet,
		OrgID:     u.OrgID,
		AvatarURL: u.AvatarURL,
	}
}

// ToSessionResponse converts a Session model to its DTO.
func ToSessionResponse(s *model.Session) SessionResponse {
	return SessionResponse{
		User:    ToUserResponse(&s.User),
		Expires: s.ExpiresAt,
	}
}
