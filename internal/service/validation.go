package service

import (
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/drugorders/identity-service/internal/domain"
)

const (
	maxUsernameLength = 150
	maxNameLength     = 150
	maxEmailLength    = 254
)

// Usernames double as store key suffixes, so ':' and whitespace are excluded.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

type CredentialPolicy struct {
	MinPasswordLength int
	MaxPasswordLength int
}

func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{MinPasswordLength: 6, MaxPasswordLength: 72}
}

func (p CredentialPolicy) ValidateUsername(username string) error {
	switch {
	case username == "":
		return domain.ValidationError{Field: "username", Msg: "is required"}
	case utf8.RuneCountInString(username) > maxUsernameLength:
		return domain.ValidationError{Field: "username", Msg: "is too long"}
	case !usernamePattern.MatchString(username):
		return domain.ValidationError{Field: "username", Msg: "may only contain letters, digits and @.+-_"}
	}
	return nil
}

func (p CredentialPolicy) ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return domain.ValidationError{Field: "password", Msg: "is required"}
	case n < p.MinPasswordLength:
		return domain.ValidationError{Field: "password", Msg: "is too short"}
	case p.MaxPasswordLength > 0 && len(password) > p.MaxPasswordLength:
		return domain.ValidationError{Field: "password", Msg: "is too long"}
	}
	return nil
}

func validateProfile(first, last, email string) error {
	if utf8.RuneCountInString(first) > maxNameLength {
		return domain.ValidationError{Field: "first_name", Msg: "is too long"}
	}
	if utf8.RuneCountInString(last) > maxNameLength {
		return domain.ValidationError{Field: "last_name", Msg: "is too long"}
	}
	return validateEmail(email)
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > maxEmailLength {
		return domain.ValidationError{Field: "email", Msg: "is too long"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ValidationError{Field: "email", Msg: "is not a valid address"}
	}
	return nil
}

func validateProfileUpdate(update domain.ProfileUpdate) error {
	if update.Empty() {
		return domain.ValidationError{Msg: "no updatable fields supplied"}
	}
	return validateProfile(deref(update.FirstName), deref(update.LastName), deref(update.Email))
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
