package repository

import (
	"context"
	"errors"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/observability"
)

func recordOperation(ctx context.Context, repo, op string, err error) {
	observability.RecordRepositoryOperation(ctx, repo, op, outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
