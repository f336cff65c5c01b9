package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"passforge/config"
	"passforge/internal/adapter/gateway"
	"passforge/internal/adapter/handler"
	"passforge/internal/domain"
	"passforge/internal/infrastructure/cache"
	"passforge/internal/infrastructure/events"
	"passforge/internal/infrastructure/postgres"
	"passforge/internal/infrastructure/token"
	"passforge/internal/usecase"
	custommw "passforge/middleware"
	"passforge/utils/logger"
	"passforge/utils/otel"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

// dependencies are the outward-facing ports the server is assembled from.
type dependencies struct {
	validator domain.SessionValidator
	store     domain.ProfileStore
	checks    map[string]handler.HealthCheck
}

// application owns the assembled server and everything that must be closed
// with it.
type application struct {
	echo    *echo.Echo
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runServe(ctx context.Context) error {
	// Initialize OpenTelemetry
	otelCfg := otel.ConfigFromEnv()
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		fmt.Printf("Failed to initialize OpenTelemetry: %v\n", err)
		otelCfg.Enabled = false
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Printf("Failed to shutdown OpenTelemetry: %v\n", err)
		}
	}()

	log := logger.Init(otelCfg.Enabled)

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "failed to load configuration", "error", err)
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	log.InfoContext(ctx, "configuration loaded",
		"kratos_url", cfg.KratosURL,
		"port", cfg.Port,
		"cache_ttl", cfg.CacheTTL,
		"profile_cache_ttl", cfg.ProfileCacheTTL,
		"session_fallback_timeout", cfg.SessionFallbackTimeout)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps := dependencies{
		validator: gateway.NewKratosGateway(cfg.KratosURL, cfg.KratosTimeout),
		store:     postgres.NewProfileRepository(pool, log),
		checks: map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error { return postgres.HealthCheck(ctx, pool) },
		},
	}

	tracedService := ""
	if otelCfg.Enabled {
		tracedService = otelCfg.ServiceName
	}
	app := newApplication(cfg, deps, tracedService, log)
	defer app.close()

	address := fmt.Sprintf(":%s", cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "starting passforge server", "address", address)
		if err := app.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.InfoContext(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.echo.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "server stopped with error", "error", err)
		return err
	}
	log.InfoContext(ctx, "server exited properly")
	return nil
}

// newApplication wires caches, use cases, handlers and routes over deps.
// tracedService enables otelecho spans under that name; empty disables them.
func newApplication(cfg *config.Config, deps dependencies, tracedService string, log *slog.Logger) *application {
	app := &application{}

	sessionCache := cache.NewSessionCache(cfg.CacheTTL)
	profileCache := cache.NewProfileCache(deps.store, cfg.ProfileCacheTTL, log)
	bus := events.NewSessionBus(log)
	app.closers = append(app.closers, sessionCache.Close, profileCache.Close)

	var issuer domain.TokenIssuer
	if cfg.BackendTokenSecret != "" {
		issuer = token.NewJWTIssuer(token.JWTConfig{
			Secret:   cfg.BackendTokenSecret,
			Issuer:   cfg.BackendTokenIssuer,
			Audience: cfg.BackendTokenAudience,
			TTL:      cfg.BackendTokenTTL,
		})
	} else {
		log.Warn("BACKEND_TOKEN_SECRET not set, backend tokens disabled")
	}

	validate := usecase.NewValidateSession(deps.validator, sessionCache, log)
	authState := usecase.NewGetAuthState(validate, bus, profileCache, issuer, cfg.SessionFallbackTimeout, log)
	csrf := usecase.NewGenerateCSRF(validate, token.NewHMACCSRFGenerator(cfg.CSRFSecret), log)
	updateProfile := usecase.NewUpdateProfile(deps.store, profileCache, bus, log)
	deleteProfile := usecase.NewDeleteProfile(deps.store, profileCache, bus, log)
	ingest := usecase.NewIngestSessionEvent(sessionCache, profileCache, bus, log)

	validateHandler := handler.NewValidateHandler(authState)
	sessionHandler := handler.NewSessionHandler(authState)
	eventsHandler := handler.NewEventsHandler(authState, 0)
	csrfHandler := handler.NewCSRFHandler(csrf)
	profileHandler := handler.NewProfileHandler(authState, csrf, updateProfile, deleteProfile)
	hooksHandler := handler.NewHooksHandler(ingest)
	healthHandler := handler.NewHealthHandler(deps.checks)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add OpenTelemetry tracing middleware
	if tracedService != "" {
		e.Use(otelecho.Middleware(tracedService))
	}
	e.Use(custommw.OTelStatusMiddleware())
	e.Use(custommw.RequestID())
	e.Use(custommw.SecurityHeaders())
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	// Rate limits per endpoint group
	sessionLimiter := custommw.NewRateLimiter("session", custommw.PerMinute(100), 20)
	writeLimiter := custommw.NewRateLimiter("write", custommw.PerMinute(30), 10)
	hookLimiter := custommw.NewRateLimiter("hooks", custommw.PerMinute(10), 10)
	app.closers = append(app.closers, sessionLimiter.Close, writeLimiter.Close, hookLimiter.Close)

	e.GET("/validate", validateHandler.Handle)
	e.GET("/session", sessionHandler.Handle, sessionLimiter.Middleware())
	e.GET("/session/events", eventsHandler.Handle, sessionLimiter.Middleware())
	e.POST("/csrf", csrfHandler.Handle, writeLimiter.Middleware())
	e.GET("/profile", profileHandler.Get, sessionLimiter.Middleware())
	e.PUT("/profile", profileHandler.Update, writeLimiter.Middleware())
	e.DELETE("/profile", profileHandler.Delete, writeLimiter.Middleware())
	e.GET("/health", healthHandler.Handle)

	// Internal routes for service-to-service communication
	internal := e.Group("/internal", custommw.InternalAuth(cfg.AuthSharedSecret), hookLimiter.Middleware())
	internal.POST("/hooks/session", hooksHandler.HandleSession)

	app.echo = e
	return app
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			log := logger.FromContext(ctx)
			if v.Error == nil {
				log.InfoContext(ctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				log.ErrorContext(ctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	})
}
