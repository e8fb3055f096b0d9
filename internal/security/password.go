package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type HashScheme string

const (
	// SchemeSHA256 is the unsalted, deterministic digest every existing record uses.
	SchemeSHA256 HashScheme = "sha256"
	// SchemeBcrypt is the upgrade target; legacy digests are re-hashed on login.
	SchemeBcrypt HashScheme = "bcrypt"
)

// HashPassword returns the hex SHA-256 digest of password. It is deterministic
// and fixed-length (64 chars), which is what lets the store compare digests
// inside a script.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// IsBcryptHash reports whether stored looks like a bcrypt hash.
func IsBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

type PasswordHasher struct {
	scheme HashScheme
	cost   int
}

func NewPasswordHasher(scheme HashScheme, cost int) (*PasswordHasher, error) {
	switch scheme {
	case "", SchemeSHA256:
		return &PasswordHasher{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
		}
		return &PasswordHasher{scheme: SchemeBcrypt, cost: cost}, nil
	default:
		return nil, fmt.Errorf("unsupported password hash scheme %q", scheme)
	}
}

func (h *PasswordHasher) Scheme() HashScheme { return h.scheme }

func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == SchemeBcrypt {
		raw, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return HashPassword(password), nil
}

// Verify checks password against a stored hash of either scheme.
func (h *PasswordHasher) Verify(stored, password string) bool {
	if IsBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	digest := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) == 1
}

// NeedsUpgrade is true when stored is a legacy digest and the hasher targets bcrypt.
func (h *PasswordHasher) NeedsUpgrade(stored string) bool {
	return h.scheme == SchemeBcrypt && !IsBcryptHash(stored)
}
