package stamp

import (
	"encoding/json"
	"fmt"
)

// WebAuthnStamp is the assertion a passkey produced over a request challenge.
// Every field is base64url encoded.
type WebAuthnStamp struct {
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJson"`
	CredentialID      string `json:"credentialId"`
	Signature         string `json:"signature"`
}

// Stamp returns the X-Stamp-WebAuthn header for the assertion.
func (s WebAuthnStamp) Stamp() (Stamp, error) {
	if s.AuthenticatorData == "" || s.ClientDataJSON == "" || s.CredentialID == "" || s.Signature == "" {
		return Stamp{}, fmt.Errorf("incomplete webauthn assertion")
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return Stamp{}, fmt.Errorf("encode webauthn stamp: %w", err)
	}
	return Stamp{HeaderName: HeaderWebAuthn, HeaderValue: string(doc)}, nil
}
