package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/erauner12/shopsync/internal/config"
	"github.com/erauner12/shopsync/internal/db"
	"github.com/erauner12/shopsync/internal/httpapi"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/store/memory"
	"github.com/erauner12/shopsync/internal/store/postgres"
	"github.com/erauner12/shopsync/internal/store/sqlite"
)

// backend is what both stores provide to the service and the auth layer
type backend interface {
	collectionsvc.Store
	auth.UserStore
}

func main() {
	cfg, err := config.Load(os.Getenv("SHOPSYNC_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	config.SetupLogging(cfg, os.Stderr)
	log.Logger = log.With().Str("service", "shopsync").Logger()
	ctx := log.Logger.WithContext(context.Background())

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	rl := cfg.Server.RateLimit
	srv := &httpapi.Server{
		Svc:      collectionsvc.New(store, cfg.Summary),
		Users:    store,
		Sessions: httpapi.NewSessionStore(cfg.SessionTTL()),
		RateLimitConfig: httpapi.RateLimitInfo{
			WindowSeconds:    rl.WindowSeconds,
			MaxRequests:      rl.MaxRequests,
			Burst:            rl.Burst,
			WriteMaxRequests: rl.WriteMaxRequests,
			WriteBurst:       rl.WriteBurst,
		},
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.Auth.HS256Secret,
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		DevMode:     cfg.DevMode,
	}
	if cfg.DevMode {
		log.Warn().Msg("dev mode: X-Debug-Sub is accepted without a token")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(jwtCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// openStore selects the store from the database URL: empty for memory,
// "sqlite:<path>" for SQLite, anything else for PostgreSQL
func openStore(ctx context.Context, cfg *config.Config) (backend, func()) {
	dsn := cfg.Server.DatabaseURL
	if dsn == "" {
		log.Warn().Msg("no database configured, using in-memory store")
		return memory.New(), func() {}
	}

	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		store, err := sqlite.Open(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite store")
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("sqlite close error")
			}
		}
	}

	opts := db.DefaultPoolOptions
	if cfg.Server.DBMaxConns > 0 {
		opts.MaxConns = cfg.Server.DBMaxConns
	}
	pool, err := db.OpenWith(ctx, dsn, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	return postgres.New(pool), pool.Close
}
