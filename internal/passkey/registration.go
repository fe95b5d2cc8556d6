package passkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/model"
)

// RegistrationOptions are handed to navigator.credentials.create.
type RegistrationOptions struct {
	CeremonyID string                       `json:"ceremonyId"`
	Options    *protocol.CredentialCreation `json:"options"`
}

// RegistrationResult is a verified passkey registration, ready to be
// attached to a new root user.
type RegistrationResult struct {
	Challenge   string              `json:"challenge"`
	Attestation custody.Attestation `json:"attestation"`
}

// BeginRegistration starts a sign-up ceremony for email.
func (s *Service) BeginRegistration(ctx context.Context, email string) (*RegistrationOptions, error) {
	user, err := newRegistrant(email)
	if err != nil {
		return nil, err
	}

	creation, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:        protocol.ResidentKeyRequirementRequired,
			RequireResidentKey: protocol.ResidentKeyRequired(),
			UserVerification:   protocol.VerificationPreferred,
		}),
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("begin passkey registration: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode registration session: %w", err)
	}

	ceremony := s.newCeremony(model.CeremonyRegistration, email)
	ceremony.Challenge = session.Challenge
	ceremony.SessionData = data
	if err := s.store.PutCeremony(ctx, ceremony, s.ttl); err != nil {
		return nil, fmt.Errorf("store registration ceremony: %w", err)
	}

	return &RegistrationOptions{CeremonyID: ceremony.ID, Options: creation}, nil
}

// FinishRegistration verifies the browser's attestation for a ceremony.
func (s *Service) FinishRegistration(ctx context.Context, ceremonyID, email string, response []byte) (*RegistrationResult, error) {
	ceremony, err := s.takeCeremony(ctx, ceremonyID, model.CeremonyRegistration, email)
	if err != nil {
		return nil, err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(ceremony.SessionData, &session); err != nil {
		return nil, fmt.Errorf("decode registration session: %w", err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("parse attestation: %w", err)
	}

	user := &registrant{id: session.UserID, name: model.UsernameFromEmail(ceremony.Email)}
	credential, err := s.webauthn.CreateCredential(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}

	raw := parsed.Raw.AttestationResponse
	return &RegistrationResult{
		Challenge: ceremony.Challenge,
		Attestation: custody.Attestation{
			CredentialID:      encode(credential.ID),
			ClientDataJSON:    encode(raw.ClientDataJSON),
			AttestationObject: encode(raw.AttestationObject),
			Transports:        MapTransports(raw.Transports),
		},
	}, nil
}

// custodyTransports maps WebAuthn transport hints to custody API enum values.
var custodyTransports = map[protocol.AuthenticatorTransport]string{
	protocol.USB:      "AUTHENTICATOR_TRANSPORT_USB",
	protocol.NFC:      "AUTHENTICATOR_TRANSPORT_NFC",
	protocol.BLE:      "AUTHENTICATOR_TRANSPORT_BLE",
	protocol.Internal: "AUTHENTICATOR_TRANSPORT_INTERNAL",
	protocol.Hybrid:   "AUTHENTICATOR_TRANSPORT_HYBRID",
}

// MapTransports converts WebAuthn transport hints to custody API enum values.
// Unknown hints are dropped.
func MapTransports(transports []string) []string {
	out := make([]string, 0, len(transports))
	for _, t := range transports {
		if v, ok := custodyTransports[protocol.AuthenticatorTransport(t)]; ok {
			out = append(out, v)
		}
	}
	return out
}

// webauthnTransports is the inverse of MapTransports.
func webauthnTransports(transports []string) []protocol.AuthenticatorTransport {
	out := make([]protocol.AuthenticatorTransport, 0, len(transports))
	for _, t := range transports {
		for hint, v := range custodyTransports {
			if v == t {
				out = append(out, hint)
				break
			}
		}
	}
	return out
}
