package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shared-wheels/carpool-ledger-api/internal/adapters/httpapi"
	"github.com/shared-wheels/carpool-ledger-api/internal/adapters/identity/jwks"
	staticidentity "github.com/shared-wheels/carpool-ledger-api/internal/adapters/identity/static"
	memtreestore "github.com/shared-wheels/carpool-ledger-api/internal/adapters/memory/treestore"
	"github.com/shared-wheels/carpool-ledger-api/internal/adapters/postgres"
	pgtreestore "github.com/shared-wheels/carpool-ledger-api/internal/adapters/postgres/treestore"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/costshare"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/members"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/projects"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/trips"
	platformclock "github.com/shared-wheels/carpool-ledger-api/internal/platform/clock"
	"github.com/shared-wheels/carpool-ledger-api/internal/platform/config"
	"github.com/shared-wheels/carpool-ledger-api/internal/platform/keylock"
	identityport "github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
	treestoreport "github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store treestoreport.Store
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			logger.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := pgtreestore.NewStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("postgres schema setup failed", "error", err)
			os.Exit(1)
		}
		store = pg
	default:
		store = memtreestore.NewStore()
	}

	clk := platformclock.NewSystemClock()
	locks := keylock.New()

	projectsSvc := projects.NewService(store, locks, clk)
	tripsSvc := trips.NewService(store, locks, clk, logger)
	costShareSvc := costshare.NewService(projectsSvc)
	membersSvc := members.NewService(store)

	var resolver identityport.Resolver
	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case "dev":
		resolver = staticidentity.New(cfg.DevSubject)
		authMW = httpapi.NewDevAuthMiddleware(resolver, membersSvc)
		logger.Warn("dev auth mode enabled, do not use in production")
	default:
		resolver = jwks.New(jwks.Options{
			Issuer:          cfg.JWTIssuer,
			Audience:        cfg.JWTAudience,
			JWKSURL:         cfg.JWKSURL,
			ClockSkew:       cfg.JWTClockSkew,
			RefreshInterval: cfg.JWKSRefreshInterval,
			HTTPTimeout:     cfg.JWTHTTPTimeout,
		})
		authMW = httpapi.NewAuthMiddleware(resolver, membersSvc)
	}

	api := httpapi.NewServer(projectsSvc, tripsSvc, costShareSvc)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	go func() {
		logger.Info("api listening", "port", cfg.Port, "storage", cfg.StorageBackend, "auth", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
