// Command sanctuary-server starts the vault storage engine HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aoculi/sanctuary/internal/config"
	pkgcrypto "github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/limiter"
	"github.com/aoculi/sanctuary/internal/repository/postgres"
	"github.com/aoculi/sanctuary/internal/server/httpserver"
	"github.com/aoculi/sanctuary/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves the HTTP API until
// the process receives SIGINT or SIGTERM.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		// JWT_SECRET is required; refusing to start without it is deliberate.
		logger.Fatal("config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// postgres.New migrates the schema before opening the pool.
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	vaultRepo := postgres.NewVaultRepo(db)
	bookmarkRepo := postgres.NewBookmarkRepo(db)
	tagRepo := postgres.NewTagRepo(db)
	linkRepo := postgres.NewLinkRepo(db)

	lim := limiter.NewLimits()

	// Services
	hashParams := pkgcrypto.DefaultParams
	hashParams.Memory = cfg.ArgonMemoryKiB
	authSvc, err := service.NewAuthService(userRepo, sessionRepo, []byte(cfg.JWTSecret), cfg.TokenTTL, lim, hashParams)
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}
	vaultSvc := service.NewVaultService(vaultRepo, logger)
	itemSvc := service.NewItemService(vaultRepo, bookmarkRepo, tagRepo, logger)
	linkSvc := service.NewLinkService(vaultRepo, bookmarkRepo, tagRepo, linkRepo)

	srv := httpserver.New(authSvc, vaultSvc, itemSvc, linkSvc, logger, cfg.CORSOrigin)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			_ = httpSrv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
