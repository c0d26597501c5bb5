package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewAttemptSession generates the opaque continuation token handed to the
// client between challenge rounds: 64 hex characters of CSPRNG output.
func NewAttemptSession() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate attempt session: %w", err)
	}
	return hex.EncodeToString(b), nil
}
