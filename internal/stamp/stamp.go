// Package stamp signs custody API requests.
//
// A stamp is a header carrying a signature over the exact request body. The
// custody API accepts two kinds: an API key stamp produced server-side with a
// P-256 key, and a WebAuthn stamp produced by a passkey in the browser.
package stamp

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
)

// Stamp header names.
const (
	HeaderAPIKey   = "X-Stamp"
	HeaderWebAuthn = "X-Stamp-WebAuthn"
)

var (
	// ErrMissingKey is returned when an API key stamper is built without keys.
	ErrMissingKey = errors.New("must provide public and private api key")
	// ErrInvalidSignature is returned when a stamp does not verify.
	ErrInvalidSignature = errors.New("invalid stamp signature")
	// ErrInvalidSignedRequest is returned for incomplete signed requests.
	ErrInvalidSignedRequest = errors.New("invalid signed request")
)

// Stamp is a header name/value pair attached to a custody request.
type Stamp struct {
	HeaderName  string `json:"stampHeaderName"`
	HeaderValue string `json:"stampHeaderValue"`
}

// Stamper produces a stamp for a request body.
type Stamper interface {
	Stamp(body []byte) (Stamp, error)
}

// SignedRequest is a stamped request that has not been sent yet.
// The body must be forwarded byte-for-byte or the stamp no longer verifies.
type SignedRequest struct {
	URL   string `json:"url"`
	Body  string `json:"body"`
	Stamp Stamp  `json:"stamp"`
}

// Validate checks that every part of the signed request is present.
func (r SignedRequest) Validate() error {
	if r.Body == "" || r.Stamp.HeaderName == "" || r.Stamp.HeaderValue == "" {
		return ErrInvalidSignedRequest
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidSignedRequest
	}
	return nil
}

// Challenge returns the WebAuthn challenge a passkey signs to stamp body:
// the lowercase hex SHA-256 of the body, taken as raw bytes.
func Challenge(body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(hex.EncodeToString(sum[:]))
}
