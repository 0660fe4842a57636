package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// TokenLength is the length in characters of every opaque token string
	// issued by the server. Tokens are hex-encoded, so this corresponds to
	// TokenLength/2 bytes of entropy (160 bits).
	TokenLength = 40

	// SecretLength is the length in characters of generated client secrets.
	SecretLength = 40
)

// GenerateToken returns a cryptographically random opaque token string.
// The result is TokenLength lowercase hex characters with no internal
// structure; it must only ever be compared by exact match.
func GenerateToken() (string, error) {
	return randomHex(TokenLength)
}

// GenerateClientSecret returns a cryptographically random client secret.
// The raw secret is handed to the client exactly once at registration;
// only its bcrypt hash is persisted.
func GenerateClientSecret() (string, error) {
	return randomHex(SecretLength)
}

func randomHex(length int) (string, error) {
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
