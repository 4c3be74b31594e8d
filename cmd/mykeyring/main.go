package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for TLS to postgres from a scratch container

	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/credential"
	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/memory"
	pgadapter "github.com/ericfisherdev/mykeyring/internal/adapter/driven/postgres"
	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/random"
	sqliteadapter "github.com/ericfisherdev/mykeyring/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/mykeyring/internal/adapter/driving/http"
	"github.com/ericfisherdev/mykeyring/internal/application"
	"github.com/ericfisherdev/mykeyring/internal/config"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"hash_credentials", cfg.HashCredentials,
		"login_rate", cfg.LoginAttemptsPerMinute,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the document store and run its migrations.
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	// 4. Pick the credential verifier.
	var verifier driven.CredentialVerifier = credential.Plaintext{}
	if cfg.HashCredentials {
		verifier, err = credential.NewBcrypt(0)
		if err != nil {
			return err
		}
	}

	// 5. Create services.
	vaultSvc := application.NewVaultService(store, logger)
	accountSvc := application.NewAccountService(store, verifier, vaultSvc, logger)
	suggester := application.NewSuggester(random.NewSource())

	// 6. Metrics and login throttling.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httphandler.NewMetrics(registry)

	limiter := httphandler.NewLoginLimiter(cfg.LoginAttemptsPerMinute)
	defer limiter.Stop()

	// 7. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(accountSvc, vaultSvc, suggester, limiter, metrics, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, registry),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("mykeyring started", "listen_addr", cfg.ListenAddr, "store", cfg.Store)

	// 8. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// openStore opens the configured backend and returns it with the closer that
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (driven.DocumentStore, io.Closer, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := pgadapter.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pgadapter.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		slog.Info("postgres store ready")
		return pgadapter.NewStore(db), db, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), io.NopCloser(nil), nil

	default:
		// Dual reader/writer with WAL mode; migrations run on the writer.
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		slog.Info("sqlite store ready", "path", cfg.DBPath)
		return sqliteadapter.NewStore(db), db, nil
	}
}
