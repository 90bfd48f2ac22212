package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"veripass/internal/directory"
	"veripass/internal/platform/config"
	"veripass/internal/platform/httpserver"
	"veripass/internal/platform/logger"
	platformmetrics "veripass/internal/platform/metrics"
	platformredis "veripass/internal/platform/redis"
	sodcms "veripass/internal/sod/cms"
	httptransport "veripass/internal/transport/http"
	"veripass/internal/verification"
	verificationhandler "veripass/internal/verification/handler"
	verificationmetrics "veripass/internal/verification/metrics"
	verificationstore "veripass/internal/verification/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	healthChecks := map[string]httptransport.HealthChecker{}

	// PKD directory: in-memory base, optionally fronted by Redis and always
	// wrapped with bounded retries.
	var dir directory.Directory = directory.NewMemoryDirectory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		dir = directory.NewRedisCache(redisClient.Client, dir, cfg.Redis.CacheTTL)
		healthChecks["redis"] = redisClient
	}
	dir = directory.NewRetrying(dir, uint64(cfg.Verification.RetryAttempts), 100*time.Millisecond)

	// Session store: PostgreSQL when configured, in-memory otherwise.
	var store verification.SessionStore = verificationstore.NewMemoryStore()
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = verificationstore.NewPostgres(db)
		healthChecks["postgres"] = dbHealth{db}
	}

	service := verification.NewService(
		dir,
		sodcms.New(),
		store,
		log,
		verification.WithLookupTimeout(cfg.Verification.LookupTimeout),
		verification.WithHashWorkers(cfg.Verification.HashWorkers),
		verification.WithMetrics(verificationmetrics.New()),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Verification: verificationhandler.New(service, store, log),
		Logger:       log,
		Metrics:      platformmetrics.NewHTTP(),
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting veripass", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }
