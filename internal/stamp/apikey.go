package stamp

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// SchemeP256 identifies ECDSA P-256 API key signatures.
const SchemeP256 = "SIGNATURE_SCHEME_TK_API_P256"

const privateKeyLen = 32

var errSchemeMismatch = errors.New("unsupported stamp scheme")

// apiKeyStamp is the JSON document carried, base64url encoded, in X-Stamp.
type apiKeyStamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// APIKeyStamper stamps requests with a P-256 API key.
type APIKeyStamper struct {
	publicKey  string
	privateKey *ecdsa.PrivateKey
}

// NewAPIKeyStamper builds a stamper from a hex compressed public key and a
// hex private scalar. The public key must match the private key.
func NewAPIKeyStamper(publicKeyHex, privateKeyHex string) (*APIKeyStamper, error) {
	publicKeyHex = strings.ToLower(strings.TrimSpace(publicKeyHex))
	privateKeyHex = strings.TrimSpace(privateKeyHex)
	if publicKeyHex == "" || privateKeyHex == "" {
		return nil, ErrMissingKey
	}

	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	derived := hex.EncodeToString(elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y))
	if derived != publicKeyHex {
		return nil, fmt.Errorf("public key %s does not match private key", publicKeyHex)
	}

	return &APIKeyStamper{publicKey: derived, privateKey: priv}, nil
}

// PublicKey returns the hex compressed public key.
func (s *APIKeyStamper) PublicKey() string {
	return s.publicKey
}

// Stamp signs body and returns the X-Stamp header.
func (s *APIKeyStamper) Stamp(body []byte) (Stamp, error) {
	digest := sha256.Sum256(body)
	sig, err := ecdsa.SignASN1(rand.Reader, s.privateKey, digest[:])
	if err != nil {
		return Stamp{}, fmt.Errorf("sign body: %w", err)
	}

	doc, err := json.Marshal(apiKeyStamp{
		PublicKey: s.publicKey,
		Scheme:    SchemeP256,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return Stamp{}, fmt.Errorf("encode stamp: %w", err)
	}

	return Stamp{
		HeaderName:  HeaderAPIKey,
		HeaderValue: base64.RawURLEncoding.EncodeToString(doc),
	}, nil
}

// VerifyAPIKeyStamp checks an X-Stamp header value against body and returns
// the public key that signed it.
func VerifyAPIKeyStamp(headerValue string, body []byte) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(headerValue)
	if err != nil {
		return "", fmt.Errorf("decode stamp: %w", err)
	}

	var doc apiKeyStamp
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode stamp: %w", err)
	}
	if doc.Scheme != SchemeP256 {
		return "", errSchemeMismatch
	}

	pubBytes, err := hex.DecodeString(doc.PublicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pubBytes)
	if x == nil {
		return "", fmt.Errorf("decode public key: not a compressed P-256 point")
	}

	sig, err := hex.DecodeString(doc.Signature)
	if err != nil {
		return "", ErrInvalidSignature
	}

	digest := sha256.Sum256(body)
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return "", ErrInvalidSignature
	}

	return doc.PublicKey, nil
}

// KeyPair is a hex encoded API key pair.
type KeyPair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// GenerateAPIKey creates a new P-256 API key pair.
func GenerateAPIKey() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return &KeyPair{
		PublicKey:  hex.EncodeToString(elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)),
		PrivateKey: hex.EncodeToString(priv.D.FillBytes(make([]byte, privateKeyLen))),
	}, nil
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) > privateKeyLen {
		return nil, fmt.Errorf("private key is %d bytes, want at most %d", len(raw), privateKeyLen)
	}
	if len(raw) < privateKeyLen {
		padded := make([]byte, privateKeyLen)
		copy(padded[privateKeyLen-len(raw):], raw)
		raw = padded
	}

	// ecdh rejects zero and out-of-range scalars and gives us the public point.
	ecdhKey, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	point := ecdhKey.PublicKey().Bytes()

	priv := &ecdsa.PrivateKey{D: new(big.Int).SetBytes(raw)}
	priv.PublicKey.Curve = elliptic.P256()
	priv.PublicKey.X = new(big.Int).SetBytes(point[1 : 1+privateKeyLen])
	priv.PublicKey.Y = new(big.Int).SetBytes(point[1+privateKeyLen:])
	return priv, nil
}
