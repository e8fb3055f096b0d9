package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/observability"
	"github.com/drugorders/identity-service/internal/repository"
)

type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

type LoginInput struct {
	Username string
	Password string
	ClientIP string
}

// LogoutInput names the credentials presented on the logout request. Either
// may be empty.
type LogoutInput struct {
	SessionID string
	Token     string
}

// AuthResult is the user plus the freshly minted session and bearer token.
type AuthResult struct {
	User      *domain.User
	SessionID string
	Token     string
}

type AuthSettings struct {
	Policy     CredentialPolicy
	SessionTTL time.Duration
	TokenTTL   time.Duration
}

type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.TokenRepository
	guard    LoginGuard
	settings AuthSettings
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens repository.TokenRepository,
	guard LoginGuard,
	settings AuthSettings,
	logger *slog.Logger,
) *AuthService {
	if guard == nil {
		guard = NewNoopLoginGuard()
	}
	if settings.Policy.MinPasswordLength <= 0 {
		settings.Policy = DefaultCredentialPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		guard:    guard,
		settings: settings,
		logger:   logger,
	}
}

// Register creates the account and signs the new user in. If issuing the
// session or token fails the account is kept and the client has to log in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.Provision(ctx, in, domain.Privileges{})
	if err != nil {
		observability.RecordAuthRegister(ctx, authOutcome(err))
		return nil, err
	}
	res, err := s.issue(ctx, user)
	observability.RecordAuthRegister(ctx, authOutcome(err))
	if err != nil {
		s.logger.ErrorContext(ctx, "user registered without credentials", "user_id", user.ID, "username", user.Username, "error", err.Error())
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return res, nil
}

// Provision validates input and creates an account with the given
// privileges without issuing credentials.
func (s *AuthService) Provision(ctx context.Context, in RegisterInput, priv domain.Privileges) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.settings.Policy.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := s.settings.Policy.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateProfile(in.FirstName, in.LastName, in.Email); err != nil {
		return nil, err
	}
	profile := domain.Profile{FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}
	return s.users.Register(ctx, in.Username, in.Password, profile, priv)
}

// Login verifies credentials and issues a session and a bearer token. Failed
// attempts feed the login guard.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	res, err := s.login(ctx, in)
	observability.RecordAuthLogin(ctx, authOutcome(err))
	return res, err
}

func (s *AuthService) login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.ValidationError{Field: "username", Msg: "is required"}
	}
	if in.Password == "" {
		return nil, domain.ValidationError{Field: "password", Msg: "is required"}
	}

	cooldown, err := s.guard.Check(ctx, username, in.ClientIP)
	if err != nil {
		return nil, err
	}
	if cooldown > 0 {
		return nil, &LoginThrottledError{RetryAfter: cooldown}
	}

	// A name no account can have never reaches the store.
	if s.settings.Policy.ValidateUsername(username) != nil {
		s.registerFailure(ctx, username, in.ClientIP)
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.Authenticate(ctx, username, in.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		s.registerFailure(ctx, username, in.ClientIP)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := s.guard.Reset(ctx, username, in.ClientIP); err != nil {
		s.logger.WarnContext(ctx, "login guard reset failed", "username", username, "error", err.Error())
	}
	return s.issue(ctx, user)
}

func (s *AuthService) registerFailure(ctx context.Context, username, clientIP string) {
	delay, err := s.guard.RegisterFailure(ctx, username, clientIP)
	if err != nil {
		s.logger.WarnContext(ctx, "login guard update failed", "username", username, "error", err.Error())
		return
	}
	if delay > 0 {
		s.logger.WarnContext(ctx, "login cooldown applied", "username", username, "client_ip", clientIP, "cooldown", delay.String())
	}
}

// Logout deletes the presented session and revokes the presented token.
// Credentials that are already gone are ignored.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) error {
	err := s.logout(ctx, in)
	observability.RecordAuthLogout(ctx, authOutcome(err))
	return err
}

func (s *AuthService) logout(ctx context.Context, in LogoutInput) error {
	if in.SessionID != "" {
		if _, err := s.sessions.Delete(ctx, in.SessionID); err != nil {
			return err
		}
	}
	if in.Token != "" {
		if _, err := s.tokens.Revoke(ctx, in.Token); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) RevokeAllTokens(ctx context.Context, username string) (int, error) {
	n, err := s.tokens.RevokeAll(ctx, username)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "tokens revoked", "username", username, "count", n)
	return n, nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResult, error) {
	sid, err := s.sessions.Create(ctx, user.Username, s.settings.SessionTTL)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Create(ctx, user.Username, s.settings.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, SessionID: sid, Token: token}, nil
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, ErrLoginThrottled):
		return "throttled"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
