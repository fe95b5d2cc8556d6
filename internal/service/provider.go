package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/passkey"
	"github.com/keyport/keyport/internal/stamp"
)

// ErrInvalidCredentials is returned when neither sign-up nor sign-in yields a user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User-facing auth messages.
const (
	MessageInvalidCredentials = "Invalid credentials."
	MessageUnexpected         = "Something went wonky."
)

// Credentials is what the browser posts to finish signing up or in.
// Challenge and Attestation select sign-up; SignedRequest selects sign-in.
type Credentials struct {
	Email         string
	Challenge     string
	Attestation   *custody.Attestation
	SignedRequest *stamp.SignedRequest
}

// AuthFlow is the part of AuthService the provider depends on.
type AuthFlow interface {
	SignUp(ctx context.Context, email string, registration *passkey.RegistrationResult) (*model.User, error)
	SignIn(ctx context.Context, email string, req stamp.SignedRequest) (*model.User, error)
}

// CredentialsProvider turns posted credentials into a signed-in user.
type CredentialsProvider struct {
	auth   AuthFlow
	logger *slog.Logger
}

// NewCredentialsProvider creates a new CredentialsProvider.
func NewCredentialsProvider(auth AuthFlow, logger *slog.Logger) *CredentialsProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialsProvider{auth: auth, logger: logger}
}

// Authorize routes credentials to sign-up or sign-in.
// It returns ErrInvalidCredentials when no user results.
func (p *CredentialsProvider) Authorize(ctx context.Context, creds Credentials) (*model.User, error) {
	email := model.NormalizeEmail(creds.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	var (
		user *model.User
		err  error
	)
	switch {
	case creds.Challenge != "" && creds.Attestation != nil:
		user, err = p.auth.SignUp(ctx, email, &passkey.RegistrationResult{
			Challenge:   creds.Challenge,
			Attestation: *creds.Attestation,
		})
	case creds.SignedRequest != nil:
		user, err = p.auth.SignIn(ctx, email, *creds.SignedRequest)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Result maps the outcome of Authorize to the response the browser expects.
func (p *CredentialsProvider) Result(err error, redirectTo string) model.AuthResult {
	if err == nil {
		return model.AuthResult{Status: model.AuthStatusOK, RedirectTo: redirectTo}
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return model.AuthResult{Status: model.AuthStatusError, Error: MessageInvalidCredentials}
	}
	p.logger.Error("sign-in failed", slog.String("error", err.Error()))
	return model.AuthResult{Status: model.AuthStatusError, Error: MessageUnexpected}
}
