package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/auth"
	"github.com/tbourn/go-realty-backend/internal/cache"
	"github.com/tbourn/go-realty-backend/internal/config"
	httpapi "github.com/tbourn/go-realty-backend/internal/http"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/storage"
	"github.com/tbourn/go-realty-backend/internal/sysutil"
)

// bootstrap loads configuration, installs the logger and opens the database.
func bootstrap() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	sysutil.SetupLogger(cfg.Log.Level, cfg.Log.Pretty, nil, cfg.OTEL.ServiceName)

	dsn := cfg.DB.Path
	if cfg.DB.Driver == "postgres" {
		dsn = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, dsn)
	if err != nil {
		return cfg, nil, fmt.Errorf("db: %w", err)
	}
	return cfg, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("migrations applied")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Payments.SecretKey == "" && cfg.Server.GinMode != gin.TestMode {
		return errors.New("config: STRIPE_SECRET_KEY is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version := sysutil.FirstNonEmpty(Version, "dev")
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	deps := httpapi.Deps{
		DB: db,
		Verifier: auth.NewVerifier(auth.Config{
			URL:       cfg.Auth.SupabaseURL,
			AnonKey:   cfg.Auth.AnonKey,
			JWTSecret: cfg.Auth.JWTSecret,
		}, nil),
		Gateway: payments.NewStripeGateway(cfg.Payments.SecretKey, payments.WithCurrency(cfg.Payments.Currency)),
	}
	if cfg.Auth.SupabaseURL != "" {
		deps.Exchanger = auth.NewSupabaseExchanger(auth.Config{URL: cfg.Auth.SupabaseURL, AnonKey: cfg.Auth.AnonKey}, nil)
	}

	c, err := cache.New(cfg.Cache.RedisURL, "realty", cfg.Cache.TTL)
	if err != nil {
		return err
	}
	if c.Enabled() {
		if err := c.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; serving uncached until it recovers")
		}
		defer c.Close()
		deps.Cache = c
	}

	if cfg.Storage.Enabled() {
		st, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		deps.Store = st
	} else {
		log.Info().Msg("storage bucket not configured; uploads disabled")
	}

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
