// Package passkey runs the WebAuthn ceremonies behind sign-up and sign-in.
//
// Registration produces an attestation the custody API uses to register the
// passkey as a root user authenticator. Assertion has the passkey sign the
// challenge of a custody request, turning the result into a WebAuthn stamp.
package passkey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/oklog/ulid/v2"

	"github.com/keyport/keyport/internal/model"
)

// Defaults for relying party settings.
const (
	DefaultRPDisplayName = "Keyport Demo Wallet"
	DefaultRPID          = "localhost"
	DefaultCeremonyTTL   = 5 * time.Minute
)

var (
	// ErrCeremonyMismatch is returned when a ceremony is finished with the wrong kind or email.
	ErrCeremonyMismatch = errors.New("passkey ceremony mismatch")
	// ErrClientData is returned when the browser's client data does not match the ceremony.
	ErrClientData = errors.New("invalid passkey client data")
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	CeremonyTTL   time.Duration
}

// Store keeps pending ceremonies between the begin and finish calls.
type Store interface {
	PutCeremony(ctx context.Context, ceremony *model.Ceremony, ttl time.Duration) error
	TakeCeremony(ctx context.Context, id string) (*model.Ceremony, error)
}

// CredentialFinder looks up the passkeys a returning user registered, so the
// browser can be pointed at them during sign-in.
type CredentialFinder interface {
	CredentialsForEmail(ctx context.Context, email string) ([]*model.Authenticator, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCredentialFinder enables allowCredentials hints at sign-in. Without it
// sign-in relies on discoverable credentials only.
func WithCredentialFinder(f CredentialFinder) Option {
	return func(s *Service) {
		s.credentials = f
	}
}

type provider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
}

// Service runs passkey ceremonies for one relying party.
type Service struct {
	webauthn    provider
	store       Store
	credentials CredentialFinder
	rpID        string
	origins     []string
	ttl         time.Duration
	now         func() time.Time
}

// New creates a Service.
func New(cfg Config, store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("passkey store is required")
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = DefaultRPDisplayName
	}
	if cfg.RPID == "" {
		cfg.RPID = DefaultRPID
	}
	if cfg.CeremonyTTL <= 0 {
		cfg.CeremonyTTL = DefaultCeremonyTTL
	}
	if len(cfg.RPOrigins) == 0 {
		return nil, errors.New("at least one relying party origin is required")
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}

	s := &Service{
		webauthn: wa,
		store:    store,
		rpID:     cfg.RPID,
		origins:  slices.Clone(cfg.RPOrigins),
		ttl:      cfg.CeremonyTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// registrant is the WebAuthn user for a sign-up that has no account yet.
type registrant struct {
	id   []byte
	name string
}

func (u *registrant) WebAuthnID() []byte                         { return u.id }
func (u *registrant) WebAuthnName() string                       { return u.name }
func (u *registrant) WebAuthnDisplayName() string                { return u.name }
func (u *registrant) WebAuthnIcon() string                       { return "" }
func (u *registrant) WebAuthnCredentials() []webauthn.Credential { return nil }

func newRegistrant(email string) (*registrant, error) {
	id := make([]byte, 32)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("generate user handle: %w", err)
	}
	return &registrant{id: id, name: model.UsernameFromEmail(email)}, nil
}

func (s *Service) newCeremony(kind model.CeremonyKind, email string) *model.Ceremony {
	return &model.Ceremony{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Email:     model.NormalizeEmail(email),
		ExpiresAt: s.now().Add(s.ttl),
	}
}

// takeCeremony loads a ceremony and checks it belongs to this kind and email.
func (s *Service) takeCeremony(ctx context.Context, id string, kind model.CeremonyKind, email string) (*model.Ceremony, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: ceremony id is required", ErrCeremonyMismatch)
	}
	ceremony, err := s.store.TakeCeremony(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load ceremony: %w", err)
	}
	if ceremony.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s ceremony", ErrCeremonyMismatch, kind)
	}
	if ceremony.Email != model.NormalizeEmail(email) {
		return nil, fmt.Errorf("%w: email does not match", ErrCeremonyMismatch)
	}
	if ceremony.Expired(s.now()) {
		return nil, fmt.Errorf("%w: ceremony expired", ErrCeremonyMismatch)
	}
	return ceremony, nil
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
