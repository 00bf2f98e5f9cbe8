// File: internal/usecase/status.go
package usecase

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
)

// StatusUseCase implements GET_JOB and STREAM_JOB (spec.md §4.8).
type StatusUseCase struct {
	jobs      repository.JobRepository
	blobStore adapter.BlobStore
	blobCfg   config.BlobConfig
}

func NewStatusUseCase(jobs repository.JobRepository, blobStore adapter.BlobStore, blobCfg config.BlobConfig) *StatusUseCase {
	return &StatusUseCase{jobs: jobs, blobStore: blobStore, blobCfg: blobCfg}
}

// GetJob returns the owner-checked projection of a job. Foreign or missing
// jobs both surface as domain.ErrNotFound so a caller cannot distinguish
// "doesn't exist" from "not yours" (spec.md §4.1: "same shape for both to
// prevent enumeration").
func (uc *StatusUseCase) GetJob(ctx context.Context, ownerID, jobID string) (model.Projection, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return model.Projection{}, err
	}
	if job.OwnerID != ownerID {
		return model.Projection{}, domain.ErrNotFound
	}
	return uc.project(ctx, job)
}

func (uc *StatusUseCase) project(ctx context.Context, job *model.Job) (model.Projection, error) {
	if job.Status != model.JobStatusSucceeded {
		return job.ToProjection("", "", nil), nil
	}
	target, err := uc.blobStore.IssueDownloadURL(ctx, job.OwnerID, job.ResultObject, resultFilename(job))
	if err != nil {
		return model.Projection{}, err
	}
	expiresAt := target.ExpiresAt
	return job.ToProjection(target.URL, resultFilename(job), &expiresAt), nil
}

func resultFilename(job *model.Job) string {
	return job.ID + "-restored.jpg"
}

// StreamJob subscribes to record changes and emits one projection per
// change, closing chan on ctx cancellation or a terminal status (spec.md
// §4.8's push stream). The HTTP layer is responsible for the SSE framing,
// the initial synthetic event, and the heartbeat comment.
type ProjectionEvent struct {
	Projection model.Projection
	Err        error
}

func (uc *StatusUseCase) StreamJob(ctx context.Context, ownerID, jobID string) (<-chan ProjectionEvent, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}

	changes, err := uc.jobs.Watch(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan ProjectionEvent, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case updated, ok := <-changes:
				if !ok {
					return
				}
				proj, err := uc.project(ctx, updated)
				select {
				case out <- ProjectionEvent{Projection: proj, Err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil || updated.Status.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}

// HeartbeatInterval is used by the HTTP layer to frame comment keepalives.
func HeartbeatInterval(cfg config.ServerConfig) time.Duration {
	if cfg.SSEHeartbeat <= 0 {
		return 30 * time.Second
	}
	return cfg.SSEHeartbeat
}
