package service

import (
	"context"
	"net/http"

	"github.com/drugorders/identity-service/internal/domain"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, in LogoutInput) error
	RevokeAllTokens(ctx context.Context, username string) (int, error)
}

type UserServiceInterface interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type IdentityResolverInterface interface {
	Resolve(ctx context.Context, r *http.Request) (domain.Identity, error)
}
