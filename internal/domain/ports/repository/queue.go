package repository

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// QueueRepository is the durable at-least-once task store (spec.md §4.5).
// enqueue must not return success unless the task would survive a process
// restart, so implementations are expected to be backed by a transactional
// store (here, Postgres) rather than an in-memory channel.
type QueueRepository interface {
	Enqueue(ctx context.Context, tx Tx, t *model.Task) error

	// Claim atomically picks the oldest claimable task (available_at <= now,
	// not locked) and marks it locked-by workerID. Returns domain.ErrNotFound
	// if nothing is claimable.
	Claim(ctx context.Context, workerID string) (*model.Task, error)

	// Heartbeat extends the visibility lock on a claimed task.
	Heartbeat(ctx context.Context, taskID, workerID string) error

	// Reschedule requeues a task after a transient failure with the given
	// backoff delay, incrementing its attempt counter.
	Reschedule(ctx context.Context, taskID string, delay time.Duration) error

	// Complete removes a task after successful processing, retaining a
	// trimmed header for inspection.
	Complete(ctx context.Context, taskID string) error

	// Exhaust marks a task as attempts-exhausted; the caller is responsible
	// for writing the dead-letter entry in the same logical operation.
	Exhaust(ctx context.Context, taskID string) (*model.Task, error)

	// RecoverStalled requeues tasks whose heartbeat lapsed beyond staleAfter,
	// preserving their attempt counter, and returns how many were recovered.
	RecoverStalled(ctx context.Context, staleAfter time.Duration) (int, error)

	RecentCompleted(ctx context.Context, limit int) ([]model.TaskHeader, error)
	RecentFailed(ctx context.Context, limit int) ([]model.TaskHeader, error)
}

// DeadLetterRepository stores exhausted tasks for inspection and replay
// (spec.md §4.6).
type DeadLetterRepository interface {
	Put(ctx context.Context, dl *model.DeadLetter) error
	Get(ctx context.Context, id string) (*model.DeadLetter, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, ownerID string) ([]model.DeadLetter, error)
	ListAll(ctx context.Context, limit int) ([]model.DeadLetter, error)
	AppendReplayAudit(ctx context.Context, a *model.ReplayAudit) error
	// PurgeOlderThan deletes archived entries past their retention window.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
