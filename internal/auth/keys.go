package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest accepted SESSION_SECRET.
const MinSecretLength = 32

// Key derivation labels. Each purpose gets an independent key from the same secret.
const (
	KeyPurposeSessionToken  = "keyport session token v1"
	KeyPurposeCookieHash    = "keyport cookie hash v1"
	KeyPurposeCookieEncrypt = "keyport cookie encrypt v1"
)

// ErrWeakSecret is returned when the session secret is too short.
var ErrWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// DeriveKey expands secret into a 32-byte key bound to purpose using HKDF-SHA256.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if purpose == "" {
		return nil, errors.New("key purpose is required")
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
