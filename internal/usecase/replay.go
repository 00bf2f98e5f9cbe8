// File: internal/usecase/replay.go
package usecase

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	"github.com/imagerestore/controlplane/internal/infra/idgen"
	"github.com/imagerestore/controlplane/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// ReplayOptions lets the operator tool override the attempt budget of a
// replayed task (spec.md §4.6: "optionally overriding priority or attempts").
type ReplayOptions struct {
	Operator        string
	Reason          string
	OverrideMaxAttempts int // 0 means keep the original task's budget
}

// ReplayUseCase implements the dead-letter operator tool of spec.md §4.6.
type ReplayUseCase struct {
	deadLetters repository.DeadLetterRepository
	jobs        repository.JobRepository
	queue       repository.QueueRepository
	ledger      repository.LedgerRepository
	tm          repository.TransactionManager
	logger      *zerolog.Logger
}

func NewReplayUseCase(deadLetters repository.DeadLetterRepository, jobs repository.JobRepository, queue repository.QueueRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *ReplayUseCase {
	return &ReplayUseCase{deadLetters: deadLetters, jobs: jobs, queue: queue, ledger: ledger, tm: tm, logger: logger}
}

// Replay re-enqueues a single dead-lettered job.
func (uc *ReplayUseCase) Replay(ctx context.Context, deadLetterID string, opts ReplayOptions) (string, error) {
	dl, err := uc.deadLetters.Get(ctx, deadLetterID)
	if err != nil {
		return "", err
	}

	job, err := uc.jobs.FindByID(ctx, nil, dl.JobID)
	if err != nil {
		return "", err
	}
	if job.Status == model.JobStatusSucceeded {
		return "", domain.ErrJobTerminal
	}

	refunded := uc.refundAlreadyIssued(ctx, dl.JobID)
	if refunded {
		uc.logger.Info().Str("job_id", dl.JobID).Msg("replaying a job whose debit was already refunded; caller must resubmit to pay again")
	}

	maxAttempts := dl.OriginalTask.MaxAttempts
	if opts.OverrideMaxAttempts > 0 {
		maxAttempts = opts.OverrideMaxAttempts
	}

	newTask := dl.OriginalTask
	newTask.ID = idgen.NewTaskID()
	newTask.Attempt = 0
	newTask.MaxAttempts = maxAttempts
	newTask.AvailableAt = time.Now()
	newTask.CreatedAt = time.Now()
	newTask.LockedBy = ""
	newTask.LockedAt = time.Time{}
	newTask.HeartbeatAt = time.Time{}
	newTask.Replay = &model.ReplayMarker{
		OriginalJobID:    dl.JobID,
		DeadLetterID:     dl.ID,
		PreviousAttempts: dl.Attempts,
		Reason:           opts.Reason,
	}

	if err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.queue.Enqueue(ctx, tx, &newTask)
	}); err != nil {
		return "", err
	}

	if err := uc.deadLetters.Delete(ctx, dl.ID); err != nil {
		uc.logger.Error().Err(err).Str("dead_letter_id", dl.ID).Msg("replay enqueued but failed to remove dead letter")
	}

	if err := uc.deadLetters.AppendReplayAudit(ctx, &model.ReplayAudit{
		ID:           uuid.NewString(),
		DeadLetterID: dl.ID,
		JobID:        dl.JobID,
		Operator:     opts.Operator,
		Reason:       opts.Reason,
		CreatedAt:    time.Now(),
	}); err != nil {
		uc.logger.Error().Err(err).Str("dead_letter_id", dl.ID).Msg("failed to append replay audit record")
	}

	metrics.IncDeadLetter("replayed")
	return dl.JobID, nil
}

func (uc *ReplayUseCase) refundAlreadyIssued(ctx context.Context, jobID string) bool {
	debit, err := uc.ledger.LatestDebitForJob(ctx, jobID)
	if err != nil {
		return false
	}
	exists, err := uc.ledger.RefundExists(ctx, debit.ID)
	return err == nil && exists
}

// ReplayAll replays every currently archived dead letter, best-effort:
// failures are collected, not fatal to the batch.
func (uc *ReplayUseCase) ReplayAll(ctx context.Context, opts ReplayOptions) (replayed int, failures map[string]error) {
	entries, err := uc.deadLetters.ListAll(ctx, 0)
	if err != nil {
		return 0, map[string]error{"list": err}
	}
	failures = make(map[string]error)
	for _, e := range entries {
		if _, err := uc.Replay(ctx, e.ID, opts); err != nil {
			failures[e.ID] = err
			continue
		}
		replayed++
	}
	return replayed, failures
}

// ReplayUser replays every dead letter belonging to a single owner.
func (uc *ReplayUseCase) ReplayUser(ctx context.Context, ownerID string, opts ReplayOptions) (replayed int, failures map[string]error) {
	entries, err := uc.deadLetters.ListByUser(ctx, ownerID)
	if err != nil {
		return 0, map[string]error{"list": err}
	}
	failures = make(map[string]error)
	for _, e := range entries {
		if _, err := uc.Replay(ctx, e.ID, opts); err != nil {
			failures[e.ID] = err
			continue
		}
		replayed++
	}
	return replayed, failures
}

// List returns dead letters for inspection, capped at limit (0 means the
// repository's own default).
func (uc *ReplayUseCase) List(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	return uc.deadLetters.ListAll(ctx, limit)
}

// Stats gives a coarse count of the current dead-letter backlog.
type Stats struct {
	Total int
}

func (uc *ReplayUseCase) StatsSummary(ctx context.Context) (Stats, error) {
	entries, err := uc.deadLetters.ListAll(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: len(entries)}, nil
}

// Cleanup purges dead letters past the retention window (spec.md §4.6:
// "bounded window, default 30 days").
func (uc *ReplayUseCase) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	return uc.deadLetters.PurgeOlderThan(ctx, cutoff)
}
