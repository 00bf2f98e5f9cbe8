package repository

import (
	"context"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// JobRepository stores job records. Writes are always merges with
// field-level precision (spec.md §5): workers never overwrite fields the
// API front owns, and no write may move a record out of a terminal status.
type JobRepository interface {
	Create(ctx context.Context, tx Tx, j *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// MarkRunning transitions queued -> running, bumping attempt. A no-op
	// (success, no fields written) if the job is already terminal or already running.
	MarkRunning(ctx context.Context, id string, attempt int) (*model.Job, error)

	// MarkSucceeded writes the terminal success fields. No-op if already terminal.
	MarkSucceeded(ctx context.Context, id string, classification map[string]float64, prompt string, provider model.ProviderMetadata, timings model.Timings, resultObject string) error

	// MarkFailed writes the terminal failure fields. No-op if already terminal.
	MarkFailed(ctx context.Context, id string, jobErr model.JobError) error

	// Watch streams every subsequent write to id's row until ctx is cancelled.
	Watch(ctx context.Context, id string) (<-chan *model.Job, error)
}
