package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialgate/auth-gateway/internal/config"
	"github.com/socialgate/auth-gateway/internal/handler"
	"github.com/socialgate/auth-gateway/internal/repository"
	"github.com/socialgate/auth-gateway/internal/service"
	"github.com/socialgate/auth-gateway/internal/utils"
	"github.com/socialgate/auth-gateway/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	cleanup *service.TokenCleanup
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
	)

	registry := service.NewAccessTokenRegistry(
		infra.Redis(),
		infra.Logger(),
		cfg.Registry.FailOpen,
		cfg.Registry.OpTimeout.Duration,
	)
	refreshStore := service.NewRefreshTokenStore(repos.Token, cfg.JWT.RefreshTokenExpiry.Duration)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	sessionService := service.NewSessionService(
		repos.User,
		refreshStore,
		registry,
		jwtManager,
		utils.CookieSettings{
			Secure: cfg.Cookie.Secure,
			Domain: cfg.Cookie.Domain,
		},
		infra.Logger(),
	)

	cleanup := service.NewTokenCleanup(
		refreshStore,
		infra.Logger(),
		cfg.Cleanup.Interval.Duration,
		cfg.Cleanup.RevokedRetention.Duration,
	)

	authHandler := handler.NewAuthHandler(sessionService)

	router := gin.Default()
	router.Use(otelgin.Middleware("auth-gateway"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, sessionService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		cleanup: cleanup,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessions service.SessionService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/callback",
				handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
				authHandler.Callback,
			)
			auth.POST("/refresh", authHandler.Refresh)

			// Logout must succeed even with a dead or absent access token,
			// so it stays outside the auth middleware.
			auth.POST("/logout", authHandler.Logout)

			auth.POST("/logout-all", handler.AuthMiddleware(sessions), authHandler.LogoutAll)
			auth.GET("/me", handler.AuthMiddleware(sessions), authHandler.GetMe)
			auth.DELETE("/me", handler.AuthMiddleware(sessions), authHandler.Withdraw)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go a.cleanup.Run(cleanupCtx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
