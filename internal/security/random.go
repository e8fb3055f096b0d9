package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// credentialBytes gives 256 bits of entropy to session ids and bearer tokens.
const credentialBytes = 32

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// NewSessionID returns an unguessable URL-safe session identifier.
func NewSessionID() (string, error) {
	b, err := randomBytes(credentialBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewBearerToken returns an opaque hex token.
func NewBearerToken() (string, error) {
	b, err := randomBytes(credentialBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
