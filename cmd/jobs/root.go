// File: cmd/jobs/root.go
package main

import (
	"context"
	"fmt"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	"github.com/imagerestore/controlplane/internal/infra/db/postgres"
	"github.com/imagerestore/controlplane/internal/infra/logging"
	"github.com/imagerestore/controlplane/internal/infra/redis"
	"github.com/imagerestore/controlplane/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Operator tooling for the image restoration control plane",
	Long: `jobs talks directly to the control plane's Postgres and Redis stores to
inspect queue health and manage dead-lettered restoration jobs, the way an
operator would reach for a runbook script during an incident.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")
}

// deps bundles the handful of collaborators every subcommand needs. Each
// command builds and tears down its own copy rather than sharing a
// long-lived process the way the server does.
type deps struct {
	replay *usecase.ReplayUseCase
	queue  repository.QueueRepository
	log    *zerolog.Logger
	close  func()
}

// connectDeps loads config and opens direct connections to Postgres and
// Redis, wiring the same ReplayUseCase the HTTP admin surface uses so the
// CLI and the API never disagree about replay semantics.
func connectDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(cfgFile, false)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log, false)

	pool, err := postgres.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	tm := postgres.NewTxManager(pool)
	jobRepo := postgres.NewJobRepo(pool)
	ledgerRepo := postgres.NewLedgerRepo(pool)
	queueRepo := postgres.NewQueueRepo(pool, tm)
	deadLetterRepo := postgres.NewDeadLetterRepo(pool)

	replayUC := usecase.NewReplayUseCase(deadLetterRepo, jobRepo, queueRepo, ledgerRepo, tm, logger)

	return &deps{
		replay: replayUC,
		queue:  queueRepo,
		log:    logger,
		close: func() {
			redisClient.Close()
			pool.Close()
		},
	}, nil
}
