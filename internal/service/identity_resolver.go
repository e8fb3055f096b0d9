package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/observability"
)

// IdentityResolver evaluates its providers in order, once per request. The
// first credential that resolves decides the identity; rejected credentials
// are treated as absent. With no resolvable credential the caller is
// anonymous. A store outage is returned as an error, never as anonymous.
type IdentityResolver struct {
	providers []CredentialProvider
	logger    *slog.Logger
}

// NewIdentityResolver wires the standard precedence: bearer token, then
// session cookie.
func NewIdentityResolver(bearer *BearerTokenProvider, cookie *SessionCookieProvider, logger *slog.Logger) *IdentityResolver {
	return NewIdentityResolverWithProviders(logger, bearer, cookie)
}

func NewIdentityResolverWithProviders(logger *slog.Logger, providers ...CredentialProvider) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{providers: providers, logger: logger}
}

func (r *IdentityResolver) Resolve(ctx context.Context, req *http.Request) (domain.Identity, error) {
	for _, p := range r.providers {
		credential, ok := p.Credential(req)
		if !ok {
			continue
		}
		source := string(p.Kind())
		user, err := p.Resolve(ctx, credential)
		switch {
		case err == nil:
			observability.RecordIdentityResolution(ctx, source, "resolved")
			return domain.Identity{User: user, Kind: p.Kind(), Credential: credential}, nil
		case domain.IsNotFound(err):
			observability.RecordIdentityResolution(ctx, source, "rejected")
			continue
		case domain.IsStoreUnavailable(err):
			observability.RecordIdentityResolution(ctx, source, "unavailable")
			r.logger.ErrorContext(ctx, "identity resolution aborted", "source", source, "error", err.Error())
			return domain.Identity{}, err
		default:
			observability.RecordIdentityResolution(ctx, source, "error")
			return domain.Identity{}, fmt.Errorf("resolve %s credential: %w", source, err)
		}
	}
	observability.RecordIdentityResolution(ctx, "none", "anonymous")
	return domain.Anonymous(), nil
}
