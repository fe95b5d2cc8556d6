package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// QuickHash returns a truncated SHA256 hash of input, used to correlate
// emails in logs without writing them out.
// This is NOT for password storage.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes (32 hex chars)
}
