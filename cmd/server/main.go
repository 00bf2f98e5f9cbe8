// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/infra/adapters/blob"
	"github.com/imagerestore/controlplane/internal/infra/adapters/moderation"
	"github.com/imagerestore/controlplane/internal/infra/adapters/provider"
	"github.com/imagerestore/controlplane/internal/infra/adapters/verifier"
	"github.com/imagerestore/controlplane/internal/infra/db/postgres"
	"github.com/imagerestore/controlplane/internal/infra/logging"
	"github.com/imagerestore/controlplane/internal/infra/metrics"
	"github.com/imagerestore/controlplane/internal/infra/redis"
	"github.com/imagerestore/controlplane/internal/infra/tracing"
	"github.com/imagerestore/controlplane/internal/infra/web"
	"github.com/imagerestore/controlplane/internal/usecase"
	"github.com/imagerestore/controlplane/internal/worker"
	"github.com/imagerestore/controlplane/internal/worker/classify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// main wires the composition root the way the teacher's cmd/app/main.go
// does: load config, build infra clients, build repos on top of them, build
// use cases on top of the repos, then start the HTTP front and the worker
// engine side by side, both stopping on the same shutdown signal.
func main() {
	cfgPath, dev := config.ParseFlags()
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	log := logger.With().Str("component", "main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Bootstrap(ctx, "controlplane")
	if err != nil {
		log.Fatal().Err(err).Msg("tracing bootstrap failed")
	}
	defer shutdownTracing(context.Background())

	metrics.MustRegister()

	pool, err := postgres.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	tm := postgres.NewTxManager(pool)

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	jobRepo := postgres.NewJobRepo(pool)
	ledgerRepo := postgres.NewLedgerRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	queueRepo := postgres.NewQueueRepo(pool, tm)
	deadLetterRepo := postgres.NewDeadLetterRepo(pool)

	creditCounters := redis.NewCreditCounters(redisClient)
	idempotencyStore := redis.NewIdempotencyStore(redisClient)
	locker := redis.NewLocker(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	var tokenVerifier adapter.TokenVerifier
	if cfg.Runtime.Dev {
		tokenVerifier = verifier.NewDevVerifier()
	} else {
		tokenVerifier = verifier.NewJWTVerifier(cfg.Security.TokenVerifierSecret)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("gcs client init failed")
	}
	blobStore := blob.NewGCSBlobStore(storageClient, cfg.Blob)

	restorationBackends := buildProviders(ctx, cfg, &log)
	cascading := provider.NewCascadingProvider(&log, restorationBackends...)

	var moderator adapter.Moderator
	if cfg.Provider.OpenAIKey != "" {
		openaiClient := openai.NewClient(option.WithAPIKey(cfg.Provider.OpenAIKey))
		moderator = moderation.NewOpenAIModerator(&openaiClient)
	}

	creditLedger := usecase.NewCreditLedgerUseCase(creditCounters, ledgerRepo, userRepo, tm, cfg.Credits, &log)
	admission := usecase.NewAdmissionUseCase(
		rateLimiter, idempotencyStore, blobStore, moderator,
		jobRepo, queueRepo, creditLedger, tm,
		cfg.RateLimit, cfg.Queue, cfg.Credits, &log,
	)
	statusUC := usecase.NewStatusUseCase(jobRepo, blobStore, cfg.Blob)
	replayUC := usecase.NewReplayUseCase(deadLetterRepo, jobRepo, queueRepo, ledgerRepo, tm, &log)

	classifier := classify.New(&log)
	pipeline := worker.NewPipeline(blobStore, classifier, cascading, &log)
	workerID := hostnameOr("worker-1")
	engine := worker.NewEngine(queueRepo, deadLetterRepo, jobRepo, creditLedger, locker, pipeline, cfg.Queue, workerID, &log)

	go engine.Run(ctx)
	go engine.RecoverStalled(ctx, cfg.Queue.StalledCheck)

	httpServer := web.NewServer(admission, statusUC, replayUC, creditLedger, tokenVerifier, cfg.Server, pool, redisClient, cfg.Purchase.SigningSecret, &log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpServer.Routes())

	srv := &http.Server{
		Addr:         portAddr(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: 0, // SSE streams outlive a fixed write deadline
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}

// buildProviders assembles the restoration backend list in priority order:
// OpenAI first when configured, Gemini as the fallback collaborator. An
// operator running with neither key configured gets an empty cascade and
// every job fails at the provider step, matching spec.md §4.7's treatment
// of an unconfigured provider as a hard dependency failure.
func buildProviders(ctx context.Context, cfg *config.Config, log *zerolog.Logger) []adapter.RestorationProvider {
	var backends []adapter.RestorationProvider

	if cfg.Provider.OpenAIKey != "" {
		client := openai.NewClient(option.WithAPIKey(cfg.Provider.OpenAIKey))
		backends = append(backends, provider.NewOpenAIProvider(&client, cfg.Provider.DefaultModel))
	}
	if cfg.Provider.GeminiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Provider.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			log.Error().Err(err).Msg("gemini client init failed, continuing without it")
		} else {
			backends = append(backends, provider.NewGeminiProvider(client, cfg.Provider.DefaultModel))
		}
	}
	return backends
}

func hostnameOr(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}

func portAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
