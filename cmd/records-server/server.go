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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/strokecare/records/internal/config"
	"github.com/strokecare/records/internal/domain/account"
	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/domain/patient"
	"github.com/strokecare/records/internal/domain/records"
	"github.com/strokecare/records/internal/platform/auth"
	"github.com/strokecare/records/internal/platform/db"
	"github.com/strokecare/records/internal/platform/middleware"
)

const (
	tokenIssuer      = "records"
	version          = "0.1.0"
	sessionCacheSize = 4096
)

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	ns, err := db.Open(ctx,
		db.NamespaceConfig{URL: cfg.UsersURL(), Schema: cfg.UsersSchema},
		db.NamespaceConfig{URL: cfg.PatientsURL(), Schema: cfg.PatientsSchema},
		db.NamespaceConfig{URL: cfg.AuditURL(), Schema: cfg.AuditSchema},
		cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to databases")
	}
	defer ns.Close()
	logger.Info().Int("pools", len(ns.Pools())).Msg("connected to databases")

	stores := records.Stores{
		Records:     patient.NewRecordStore(ns.Patients),
		History:     patient.NewHistoryStore(ns.Patients),
		AccessLogs:  audit.NewAccessLogStore(ns.Audit),
		DataChanges: audit.NewDataChangeStore(ns.Audit),
		Users:       account.NewUserStore(ns.Users),
		Sessions:    account.NewSessionStore(ns.Users),
	}

	e, svc, err := newServer(cfg, logger, stores, ns.All())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	if cfg.AdminEmail != "" {
		created, err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, "Administrator")
		if err != nil {
			logger.Error().Err(err).Msg("admin bootstrap failed")
		} else if created {
			logger.Info().Str("email", cfg.AdminEmail).Msg("admin user created")
		}
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires handlers and middleware around the given stores. The
// account service is returned for startup tasks.
func newServer(cfg *config.Config, logger zerolog.Logger, stores records.Stores, namespaces []*db.Namespace) (*echo.Echo, *account.Service, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, nil, err
	}
	if key == nil {
		logger.Warn().Msg("SESSION_SIGNING_KEY not set; tokens will not survive a restart")
	}
	issuer, err := auth.NewTokenIssuer(tokenIssuer, key, cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}

	svc := account.NewService(stores.Users, stores.Sessions, stores.AccessLogs, stores.DataChanges, issuer, logger)
	sessions := auth.NewSessionCache(svc, sessionCacheSize, cfg.SessionCacheTTL)
	svc.WithSessionCache(sessions)

	stats := patient.NewStatsCache(stores.Records, cfg.StatsCacheTTL)
	coord := records.NewCoordinator(stores, logger,
		records.WithReportLimit(cfg.ReportLimit),
		records.WithInvalidator(stats))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(issuer.Config(sessions)))
	} else {
		e.Use(auth.JWTMiddleware(issuer.Config(sessions)))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	account.NewHandler(svc).RegisterRoutes(apiV1, middleware.RateLimit(rateLimitCfg))
	records.NewHandler(coord, stores.Records, stats).RegisterRoutes(apiV1)
	audit.NewHandler(stores.AccessLogs, stores.DataChanges).RegisterRoutes(apiV1)
	apiV1.GET("/database-status", db.HealthHandler(namespaces...))

	return e, svc, nil
}
