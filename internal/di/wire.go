//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/drugorders/identity-service/internal/app"
	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/http/handler"
	"github.com/drugorders/identity-service/internal/http/router"
	"github.com/drugorders/identity-service/internal/repository"
	"github.com/drugorders/identity-service/internal/service"
)

var storeSet = wire.NewSet(
	provideStoreOptions,
	provideStoreClient,
	provideScriptExecutor,
	providePasswordHasher,
	repository.NewUserRepository,
	wire.Bind(new(repository.UserRepository), new(*repository.RedisUserRepository)),
	provideSessionRepository,
	wire.Bind(new(repository.SessionRepository), new(*repository.RedisSessionRepository)),
	provideTokenRepository,
	wire.Bind(new(repository.TokenRepository), new(*repository.RedisTokenRepository)),
)

var serviceSet = wire.NewSet(
	provideLoginGuard,
	provideAuthSettings,
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	service.NewUserService,
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
	service.NewBearerTokenProvider,
	provideSessionCookieProvider,
	service.NewIdentityResolver,
	wire.Bind(new(service.IdentityResolverInterface), new(*service.IdentityResolver)),
)

var httpSet = wire.NewSet(
	provideCookieConfig,
	provideAuthHandler,
	handler.NewUserHandler,
	handler.NewAdminHandler,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(
		provideLogger,
		provideObservability,
		storeSet,
		serviceSet,
		httpSet,
		app.New,
	)
	return nil, nil, nil
}

func InitializeStoreTools(ctx context.Context, cfg *config.Config) (*StoreTools, func(), error) {
	wire.Build(
		provideLogger,
		storeSet,
		provideLoginGuard,
		provideAuthSettings,
		service.NewAuthService,
		newStoreTools,
	)
	return nil, nil, nil
}
