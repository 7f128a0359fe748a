package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	postgresadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/credvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/cipher"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	// 1. Load configuration (fail fast on a missing or malformed key).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_driver", cfg.DBDriver,
		"jwt_issuer", cfg.JWTIssuer,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the vault store and apply migrations.
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Wire the vault.
	c, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		return &config.ConfigurationError{Key: "ENCRYPTION_KEY", Reason: "is invalid", Err: err}
	}
	vault := application.NewVaultService(store, c, logger)

	// 5. HTTP server.
	resolver := httphandler.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	handler := httphandler.NewServeMux(httphandler.NewHandler(vault, resolver, logger), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 6. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore opens the configured backend, runs its migrations and returns the
// store together with its close function.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.VaultStore, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgresadapter.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgresadapter.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("database opened", "driver", cfg.DBDriver)
		return postgresadapter.NewCredentialRepo(db), db.Close, nil

	default:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("database opened", "driver", cfg.DBDriver, "path", db.Path())
		return sqliteadapter.NewCredentialRepo(db), db.Close, nil
	}
}
