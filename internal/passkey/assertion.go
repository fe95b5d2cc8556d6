package passkey

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/internal/stamp"
)

// AssertionOptions are handed to navigator.credentials.get.
type AssertionOptions struct {
	CeremonyID string                        `json:"ceremonyId"`
	Options    *protocol.CredentialAssertion `json:"options"`
}

// BeginAssertion starts a sign-in ceremony in which the passkey stamps req.
// The challenge is derived from the request body so the assertion doubles as
// the request's WebAuthn stamp.
func (s *Service) BeginAssertion(ctx context.Context, email string, req stamp.SignedRequest) (*AssertionOptions, error) {
	if req.URL == "" || req.Body == "" {
		return nil, stamp.ErrInvalidSignedRequest
	}

	challenge := stamp.Challenge([]byte(req.Body))

	allowed, err := s.allowedCredentials(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	ceremony := s.newCeremony(model.CeremonyAssertion, email)
	ceremony.Challenge = encode(challenge)
	ceremony.RequestURL = req.URL
	ceremony.RequestBody = req.Body
	if err := s.store.PutCeremony(ctx, ceremony, s.ttl); err != nil {
		return nil, fmt.Errorf("store assertion ceremony: %w", err)
	}

	return &AssertionOptions{
		CeremonyID: ceremony.ID,
		Options: &protocol.CredentialAssertion{
			Response: protocol.PublicKeyCredentialRequestOptions{
				Challenge:          protocol.URLEncodedBase64(challenge),
				Timeout:            int(s.ttl.Milliseconds()),
				RelyingPartyID:     s.rpID,
				AllowedCredentials: allowed,
				UserVerification:   protocol.VerificationPreferred,
			},
		},
	}, nil
}

// allowedCredentials lists the passkeys registered for email. Entries that
// do not decode are skipped.
func (s *Service) allowedCredentials(ctx context.Context, email string) ([]protocol.CredentialDescriptor, error) {
	if s.credentials == nil {
		return nil, nil
	}
	known, err := s.credentials.CredentialsForEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find credentials: %w", err)
	}

	out := make([]protocol.CredentialDescriptor, 0, len(known))
	for _, a := range known {
		id, err := base64.RawURLEncoding.DecodeString(a.CredentialID)
		if err != nil {
			continue
		}
		out = append(out, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
			Transport:    webauthnTransports(a.Transports),
		})
	}
	return out, nil
}

// FinishAssertion checks the browser's assertion and returns the stamped request.
// The signature itself is verified by the custody API, which holds the
// passkey's public key.
func (s *Service) FinishAssertion(ctx context.Context, ceremonyID, email string, response []byte) (stamp.SignedRequest, error) {
	ceremony, err := s.takeCeremony(ctx, ceremonyID, model.CeremonyAssertion, email)
	if err != nil {
		return stamp.SignedRequest{}, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return stamp.SignedRequest{}, fmt.Errorf("parse assertion: %w", err)
	}

	client := parsed.Response.CollectedClientData
	if client.Type != protocol.AssertCeremony {
		return stamp.SignedRequest{}, fmt.Errorf("%w: unexpected type %q", ErrClientData, client.Type)
	}
	if client.Challenge != ceremony.Challenge {
		return stamp.SignedRequest{}, fmt.Errorf("%w: challenge mismatch", ErrClientData)
	}
	if !slices.Contains(s.origins, client.Origin) {
		return stamp.SignedRequest{}, fmt.Errorf("%w: origin %q not allowed", ErrClientData, client.Origin)
	}

	raw := parsed.Raw.AssertionResponse
	st, err := stamp.WebAuthnStamp{
		AuthenticatorData: encode(raw.AuthenticatorData),
		ClientDataJSON:    encode(raw.ClientDataJSON),
		CredentialID:      encode(parsed.RawID),
		Signature:         encode(raw.Signature),
	}.Stamp()
	if err != nil {
		return stamp.SignedRequest{}, err
	}

	return stamp.SignedRequest{
		URL:   ceremony.RequestURL,
		Body:  ceremony.RequestBody,
		Stamp: st,
	}, nil
}
