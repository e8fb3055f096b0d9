package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/repository"
	"github.com/drugorders/identity-service/internal/security"
)

// CredentialProvider turns one kind of request credential into a user.
// Resolve returns a not-found error for credentials that are unknown or
// expired; any other error aborts resolution.
type CredentialProvider interface {
	Kind() domain.CredentialKind
	Credential(r *http.Request) (string, bool)
	Resolve(ctx context.Context, credential string) (*domain.User, error)
}

// BearerTokenProvider reads "Authorization: Bearer <t>" (or "Token <t>").
type BearerTokenProvider struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
}

func NewBearerTokenProvider(tokens repository.TokenRepository, users repository.UserRepository) *BearerTokenProvider {
	return &BearerTokenProvider{tokens: tokens, users: users}
}

func (p *BearerTokenProvider) Kind() domain.CredentialKind { return domain.CredentialBearer }

func (p *BearerTokenProvider) Credential(r *http.Request) (string, bool) {
	return security.BearerToken(r)
}

func (p *BearerTokenProvider) Resolve(ctx context.Context, token string) (*domain.User, error) {
	username, err := p.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := p.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	return user, err
}

type SessionCookieProvider struct {
	sessions   repository.SessionRepository
	cookieName string
}

func NewSessionCookieProvider(sessions repository.SessionRepository, cookieName string) *SessionCookieProvider {
	if cookieName == "" {
		cookieName = "session_id"
	}
	return &SessionCookieProvider{sessions: sessions, cookieName: cookieName}
}

func (p *SessionCookieProvider) Kind() domain.CredentialKind { return domain.CredentialSession }

func (p *SessionCookieProvider) Credential(r *http.Request) (string, bool) {
	sid := security.GetCookie(r, p.cookieName)
	return sid, sid != ""
}

func (p *SessionCookieProvider) Resolve(ctx context.Context, sessionID string) (*domain.User, error) {
	return p.sessions.Get(ctx, sessionID)
}
