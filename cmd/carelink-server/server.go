package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/careteam"
	"github.com/carelink/carelink/internal/domain/clinical"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/middleware"
	"github.com/carelink/carelink/internal/platform/phi"
	"github.com/carelink/carelink/internal/platform/scoring"
	"github.com/carelink/carelink/internal/platform/telemetry"
)

const maxBodySize = "64K"

// routes holds everything the HTTP layer mounts.
type routes struct {
	identity *identity.Handler
	care     *careteam.Handler
	history  *clinical.Handler
	dbHealth echo.HandlerFunc
	metrics  *telemetry.Metrics
}

type revocationCloser interface {
	auth.RevocationStore
	Close() error
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	digester, err := phi.NewDigesterFromConfig(cfg.BcryptCost, cfg.IdentifierLookupKey, logger)
	if err != nil {
		return err
	}

	revocations, err := newRevocationStore(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer revocations.Close()

	tx := db.NewTransactor(pool)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	identitySvc := identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewClinicianRepo(pool),
		digester, tx,
		identity.Options{
			Mode:       identity.LookupMode(cfg.ResolvedLookupMode()),
			BcryptCost: cfg.BcryptCost,
			Logger:     logger.With().Str("component", "identity").Logger(),
		},
	)
	logger.Info().Str("mode", string(identitySvc.Mode())).Msg("patient lookup mode")

	assessments := clinical.NewRiskAssessmentRepoPG(pool)
	risk := clinical.NewRiskAdapter(
		identitySvc,
		scoring.New(cfg.ScorerURL, cfg.ScorerTimeout, logger),
		assessments,
		cfg.ScorerTimeout,
		logger.With().Str("component", "risk").Logger(),
	)
	clinicalSvc := clinical.NewService(clinical.NewMeasurementRepoPG(pool), assessments, tx, risk, logger)
	metrics := telemetry.NewMetrics()
	clinicalSvc.SetOutcomeObserver(metrics)
	careSvc := careteam.NewService(careteam.NewCareLinkRepoPG(pool), identitySvc, clinicalSvc, tx, logger)

	e := newServer(cfg, logger, tokens, revocations, routes{
		identity: identity.NewHandler(identitySvc, tokens, revocations),
		care:     careteam.NewHandler(careSvc),
		history:  clinical.NewHandler(clinicalSvc),
		dbHealth: db.HealthHandler(pool),
		metrics:  metrics,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newRevocationStore uses Redis when REDIS_URL is set so logouts survive
// restarts and are shared between instances.
func newRevocationStore(ctx context.Context, redisURL string, logger zerolog.Logger) (revocationCloser, error) {
	if redisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; token revocations are kept in memory")
		return auth.NewMemoryRevocationStore(), nil
	}
	client, err := auth.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("token revocations stored in redis")
	return auth.NewRedisRevocationStore(client), nil
}

func newServer(cfg *config.Config, logger zerolog.Logger, tokens *auth.TokenIssuer, revocations auth.RevocationStore, r routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if r.metrics != nil {
		e.Use(r.metrics.Middleware())
	}
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(maxBodySize, nil))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Tokens:      tokens,
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if r.dbHealth != nil {
		e.GET("/health/db", r.dbHealth)
	}
	if r.metrics != nil {
		e.GET("/metrics", r.metrics.Handler())
	}

	authGroup := e.Group("/auth")
	apiV1 := e.Group("/api/v1")

	r.identity.RegisterRoutes(authGroup, apiV1)
	r.care.RegisterRoutes(apiV1)
	r.history.RegisterRoutes(apiV1)

	return e
}
