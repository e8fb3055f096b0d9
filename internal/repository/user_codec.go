package repository

import (
	"fmt"
	"strconv"

	"github.com/drugorders/identity-service/internal/domain"
)

// Store field names of the user hash.
const (
	fieldID          = "id"
	fieldUsername    = "username"
	fieldPassword    = "password"
	fieldFirstName   = "first_name"
	fieldLastName    = "last_name"
	fieldEmail       = "email"
	fieldIsStaff     = "is_staff"
	fieldIsSuperuser = "is_superuser"
)

func decodeUser(fields map[string]string) (*domain.User, error) {
	if len(fields) == 0 {
		return nil, domain.ErrUserNotFound
	}
	id, err := strconv.ParseInt(fields[fieldID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode user %q id: %w", fields[fieldUsername], err)
	}
	return &domain.User{
		ID:           id,
		Username:     fields[fieldUsername],
		PasswordHash: fields[fieldPassword],
		FirstName:    fields[fieldFirstName],
		LastName:     fields[fieldLastName],
		Email:        fields[fieldEmail],
		IsStaff:      decodeFlag(fields[fieldIsStaff]),
		IsSuperuser:  decodeFlag(fields[fieldIsSuperuser]),
	}, nil
}

// decodeFlag accepts "1" and the "True" spelling older records were written with.
func decodeFlag(v string) bool {
	switch v {
	case "1", "True", "true":
		return true
	default:
		return false
	}
}

func encodeFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
