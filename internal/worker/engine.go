// File: internal/worker/engine.go
package worker

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	usecaseport "github.com/imagerestore/controlplane/internal/domain/ports/usecase"
	"github.com/imagerestore/controlplane/internal/infra/metrics"
	"github.com/imagerestore/controlplane/internal/infra/redis"
	"github.com/imagerestore/controlplane/internal/infra/tracing"

	"github.com/rs/zerolog"
)

// Engine owns the queue lifecycle around Pipeline: claiming tasks, deciding
// retry vs terminal failure, writing the dead letter, and triggering the
// refund the pipeline itself is forbidden from issuing (spec.md §4.5, §4.6,
// §4.7 step 9).
type Engine struct {
	queue      repository.QueueRepository
	deadLetter repository.DeadLetterRepository
	jobs       repository.JobRepository
	credits    usecaseport.CreditLedger
	locker     redis.Locker
	pipeline   *Pipeline
	cfg        config.QueueConfig
	workerID   string
	logger     *zerolog.Logger

	concurrency chan struct{}
}

func NewEngine(
	queue repository.QueueRepository,
	deadLetter repository.DeadLetterRepository,
	jobs repository.JobRepository,
	credits usecaseport.CreditLedger,
	locker redis.Locker,
	pipeline *Pipeline,
	cfg config.QueueConfig,
	workerID string,
	logger *zerolog.Logger,
) *Engine {
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Engine{
		queue:       queue,
		deadLetter:  deadLetter,
		jobs:        jobs,
		credits:     credits,
		locker:      locker,
		pipeline:    pipeline,
		cfg:         cfg,
		workerID:    workerID,
		logger:      logger,
		concurrency: make(chan struct{}, concurrency),
	}
}

// Run polls for claimable tasks until ctx is cancelled, dispatching each
// onto the bounded concurrency pool (spec.md §5: "bounded concurrency,
// default 2 per worker process; inside a worker the pipeline for a single
// task is sequential").
func (e *Engine) Run(ctx context.Context) {
	const idlePoll = 500 * time.Millisecond
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drain(ctx)
		}
	}
}

func (e *Engine) drain(ctx context.Context) {
	for {
		select {
		case e.concurrency <- struct{}{}:
		default:
			return // pool saturated, wait for next tick
		}

		task, err := e.queue.Claim(ctx, e.workerID)
		if err != nil {
			<-e.concurrency
			return // nothing claimable
		}

		go func() {
			defer func() { <-e.concurrency }()
			e.handle(ctx, task)
		}()
	}
}

func (e *Engine) handle(ctx context.Context, task *model.Task) {
	metrics.IncQueueAttempt("claimed")

	taskCtx := tracing.Extract(ctx, task.Trace.Traceparent, task.Trace.Tracestate)

	if _, err := e.jobs.MarkRunning(taskCtx, task.JobID, task.Attempt); err != nil {
		e.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to mark job running")
	}

	result, err := e.pipeline.Process(taskCtx, task)
	if err == nil {
		e.succeed(taskCtx, task, result)
		return
	}

	e.logger.Warn().Err(err).Str("job_id", task.JobID).Int("attempt", task.Attempt).Msg("pipeline attempt failed")
	e.fail(taskCtx, task, err)
}

func (e *Engine) succeed(ctx context.Context, task *model.Task, result Result) {
	if err := e.jobs.MarkSucceeded(ctx, task.JobID, result.Classification, result.EnhancedPrompt, result.Provider, result.Timings, result.ResultObject); err != nil {
		e.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to mark job succeeded")
	}
	if err := e.queue.Complete(ctx, task.ID); err != nil {
		e.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to complete task")
	}
	metrics.IncQueueAttempt("completed")
	metrics.IncJobProcessed("succeeded")
}

func (e *Engine) fail(ctx context.Context, task *model.Task, cause error) {
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.MaxAttempts
	}

	if task.Attempt < maxAttempts {
		delay := backoffDelay(e.cfg.BackoffBaseMS, task.Attempt, e.cfg.BackoffJitter)
		if err := e.queue.Reschedule(ctx, task.ID, delay); err != nil {
			e.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to reschedule task")
		}
		metrics.IncQueueAttempt("rescheduled")
		return
	}

	e.exhaust(ctx, task, cause)
}

// exhaust implements the terminal branch of §4.6: archive the task, mark
// the job failed, and refund unless a refund already exists for it.
func (e *Engine) exhaust(ctx context.Context, task *model.Task, cause error) {
	exhausted, err := e.queue.Exhaust(ctx, task.ID)
	if err != nil {
		e.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task exhausted")
		return
	}

	dl := &model.DeadLetter{
		ID:             deadLetterID(task.JobID),
		JobID:          task.JobID,
		OwnerID:        task.OwnerID,
		OriginalTask:   *exhausted,
		FailureKind:    model.ErrorKindProvider,
		FailureMessage: cause.Error(),
		Attempts:       exhausted.Attempt,
		FailedAt:       time.Now(),
	}
	if err := e.deadLetter.Put(ctx, dl); err != nil {
		e.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to write dead letter")
	}
	metrics.IncDeadLetter("archived")

	if err := e.jobs.MarkFailed(ctx, task.JobID, model.JobError{Kind: model.ErrorKindProvider, Message: cause.Error()}); err != nil {
		e.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to mark job failed")
	}
	metrics.IncQueueAttempt("exhausted")
	metrics.IncJobProcessed("failed")

	if err := e.credits.Refund(ctx, task.OwnerID, task.JobID, "provider exhausted"); err != nil {
		e.logger.Error().Err(err).Str("job_id", task.JobID).Msg("refund on exhaustion failed")
	}
}

// RecoverStalled periodically requeues tasks whose worker died mid-flight
// (heartbeat lapsed). Guarded by a distributed lock so only one worker
// process runs the sweep when several are deployed (spec.md §4.5).
func (e *Engine) RecoverStalled(ctx context.Context, staleAfter time.Duration) {
	const lockKey = "locks:stalled-recovery"
	const lockTTL = 10 * time.Second

	ticker := time.NewTicker(e.cfg.StalledCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			token, err := e.locker.TryLock(ctx, lockKey, lockTTL)
			if err != nil {
				continue // another process holds the lock this cycle
			}
			n, err := e.queue.RecoverStalled(ctx, staleAfter)
			if err != nil {
				e.logger.Error().Err(err).Msg("stalled task recovery failed")
			} else if n > 0 {
				e.logger.Info().Int("recovered", n).Msg("recovered stalled tasks")
			}
			_ = e.locker.Unlock(ctx, lockKey, token)
		}
	}
}

// deadLetterID derives a stable identifier from the original job id so
// re-archiving the same job (e.g. a rare double-exhaust race) upserts
// rather than duplicates (spec.md §4.6 step 4).
func deadLetterID(jobID string) string {
	return "dl-" + jobID
}

// backoffDelay implements spec.md §4.5's retry formula: base * 2^(attempt-1)
// spread by a jitter factor in [1-jitter, 1+jitter].
func backoffDelay(baseMS int, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := time.Duration(baseMS) * time.Millisecond
	factor := math.Pow(2, float64(attempt-1))
	raw := float64(base) * factor
	spread := 1 + (rand.Float64()*2-1)*jitter
	d := time.Duration(raw * spread)
	if d < 0 {
		d = 0
	}
	return d
}
