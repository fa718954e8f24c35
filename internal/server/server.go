// Package server owns the process lifecycle: it connects the backends, serves
// HTTP and gRPC, and shuts everything down in order on SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/internal/kernel"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/database"
	"github.com/onyxia-store/onyxia/pkg/grpc"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/mail"
	"github.com/onyxia-store/onyxia/pkg/middleware"
	"github.com/onyxia-store/onyxia/pkg/migration"
	"github.com/onyxia-store/onyxia/pkg/session"
	"github.com/onyxia-store/onyxia/pkg/storage"
	"github.com/onyxia-store/onyxia/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// Start blocks until ctx is cancelled or a termination signal arrives.
func Start(ctx context.Context) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts, ok := logger.MongoOptionsFromConfig(); ok {
		h, err := logger.NewMongoHandler(opts)
		if err != nil {
			logger.Warn("mongo log sink disabled", "error", err)
		} else {
			logger.Tee(h)
			defer h.Close()
		}
	}

	shutdownTracing, err := tracing.Setup()
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	if err := database.Connect(); err != nil {
		return err
	}
	defer database.Close(database.DB)

	if config.Bool("AUTO_MIGRATE", true) {
		if _, err := migration.New(database.DB, io.Discard).Run(); err != nil {
			return err
		}
	}

	store := cache.Open(ctx)
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	disk, err := storage.Open(config.StorageDefault())
	if err != nil {
		logger.Warn("uploads disabled", "disk", config.StorageDefault(), "error", err)
		disk = nil
	}

	var mailer mail.Sender
	if cfg := mail.ConfigFromEnv(); cfg.Enabled() {
		mailer = mail.NewMailer(cfg)
	}

	k, err := kernel.NewHTTPKernel(kernel.Options{
		DB:          database.DB,
		Cache:       store,
		Issuer:      auth.DefaultIssuer(),
		Credentials: services.CredentialsFromConfig(),
		Disk:        disk,
		Mailer:      mailer,
		AdminEmail:  config.AdminEmail(),
		Session:     session.DefaultOptions(),
		CORS:        middleware.DefaultCORSOptions(),
		RateLimit:   config.Int("RATE_LIMIT", 200),
		Workers:     config.Int("WORKERS", 4),
		Tracing:     config.Bool("TRACING_ENABLED", false),
		StaticDir:   config.StaticDir(),
		IndexFile:   config.IndexFile(),
	})
	if err != nil {
		return err
	}

	grpcSrv, err := grpc.Start(config.GRPCPort(), k.Probes()...)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           k.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go k.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Onyxia running", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	grpcSrv.Stop(sctx)
	if err := k.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := shutdownTracing(sctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	logger.Info("Onyxia stopped")
	return errors.Join(errs...)
}
