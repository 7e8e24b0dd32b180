// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"

	scs "github.com/alexedwards/scs/v2"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rleiva/taxqual/cache"
	"github.com/rleiva/taxqual/internal/assistant"
	"github.com/rleiva/taxqual/internal/bus"
	"github.com/rleiva/taxqual/internal/config"
	"github.com/rleiva/taxqual/internal/export"
	"github.com/rleiva/taxqual/internal/http/routes"
	"github.com/rleiva/taxqual/internal/qualification"
	"github.com/rleiva/taxqual/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	logger.Info().Str("port", cfg.Port).Msg("starting taxqual api")

	// DB
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	st := store.New(pool)

	// Metrics
	registry := prometheus.NewRegistry()
	cacheStore := cache.New(cache.WithMetrics(cache.NewMetrics(registry)))

	// Sessions
	sess := scs.New()
	sess.Lifetime = cfg.SessionLifetime
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode

	// Data layer
	signals := bus.New()
	assistantCtx := assistant.New()
	svc := qualification.NewService(
		cacheStore, signals, st, st, assistantCtx,
		cfg.CacheTTL, cfg.PageSize, logger,
	)

	// Additional export formats register here; their encoders live
	// outside this module. JSON is built in.
	exports := export.NewRegistry()
	exports.Register(export.JSON())

	// Background queue
	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = queue.Close() }()

	s := routes.New(routes.ServerOptions{
		Sess:           sess,
		Svc:            svc,
		Exports:        exports,
		Assistant:      assistantCtx,
		Queue:          queue,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Log:            logger,
		RetentionHours: int(cfg.AuditRetention.Hours()),
	})
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: sess.LoadAndSave(h)}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
