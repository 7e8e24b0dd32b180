// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rleiva/taxqual/internal/config"
	"github.com/rleiva/taxqual/internal/jobs"
	"github.com/rleiva/taxqual/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()
	st := store.New(pool)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			jobs.QueueMaintenance: 5,
			"default":             1,
		},
	})
	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskAuditPurge, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad audit purge payload")
			return err
		}
		cutoff := time.Now().UTC().Add(-time.Duration(p.RetentionHours) * time.Hour)
		start := time.Now()
		purged, err := st.PurgeAuditBefore(ctx, cutoff)
		if err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("audit purge failed")
			return err
		}
		logger.Info().
			Int64("purged", purged).
			Time("cutoff", cutoff).
			Dur("duration", time.Since(start)).
			Msg("audit purge done")
		return nil
	})

	logger.Info().Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
