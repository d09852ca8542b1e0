// Package crypto provides the small set of cryptographic primitives the
// registrar needs: secure random token generation for challenges.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns a cryptographically secure random token of
// length bytes, hex-encoded. Unlike a bare rand.Read call, a failure here
// is returned to the caller rather than silently producing an empty or
// predictable token: token uniqueness backs every challenge the engine
// hands out, so a swallowed error would let two claimants race on the
// same empty string.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto: generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
