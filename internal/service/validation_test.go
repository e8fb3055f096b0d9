package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/drugorders/identity-service/internal/domain"
)

func TestCredentialPolicy(t *testing.T) {
	policy := CredentialPolicy{MinPasswordLength: 6, MaxPasswordLength: 72}

	usernames := map[string]bool{
		"bob":                    true,
		"bob.smith+rx@pharm-1":   true,
		"":                       false,
		"bob:admin":              false,
		"bob smith":              false,
		strings.Repeat("a", 151): false,
	}
	for name, ok := range usernames {
		err := policy.ValidateUsername(name)
		if ok && err != nil {
			t.Fatalf("username %q should be accepted: %v", name, err)
		}
		if !ok && !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("username %q should be rejected, got %v", name, err)
		}
	}

	passwords := map[string]bool{
		"s3cret1":               true,
		"123456":                true,
		"12345":                 false,
		"":                      false,
		strings.Repeat("x", 73): false,
	}
	for pw, ok := range passwords {
		err := policy.ValidatePassword(pw)
		if ok && err != nil {
			t.Fatalf("password of length %d should be accepted: %v", len(pw), err)
		}
		if !ok && !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("password of length %d should be rejected, got %v", len(pw), err)
		}
	}
}

func TestValidateProfileUpdate(t *testing.T) {
	good := "x@example.com"
	bad := "x at example"
	if err := validateProfileUpdate(domain.ProfileUpdate{Email: &good}); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if err := validateProfileUpdate(domain.ProfileUpdate{Email: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for bad email, got %v", err)
	}
	if err := validateProfileUpdate(domain.ProfileUpdate{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
}
