// File: internal/usecase/admission.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	usecaseport "github.com/imagerestore/controlplane/internal/domain/ports/usecase"
	"github.com/imagerestore/controlplane/internal/imaging"
	"github.com/imagerestore/controlplane/internal/infra/idgen"
	"github.com/imagerestore/controlplane/internal/infra/metrics"
	"github.com/imagerestore/controlplane/internal/infra/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

const maxInlineImageBytes = 10 << 20 // 10 MiB

// SubmitJobSource distinguishes the two admitted input shapes (spec.md §4.1 step 4).
type SubmitJobSource struct {
	InlineImage []byte // shape (a): raw multipart bytes, sniffed by magic number
	BlobObject  string // shape (b): reference to a pre-uploaded object
}

type SubmitJobRequest struct {
	OwnerID        string
	PeerAddress    string
	IdempotencyKey string
	Method         string
	Path           string
	Prompt         string
	Source         SubmitJobSource
}

type SubmitJobResponse struct {
	JobID    string            `json:"job_id"`
	Status   model.JobStatus   `json:"status"`
	Credit   model.CreditDebit `json:"credit"`
	Location string            `json:"location"`
	Replayed bool              `json:"-"`

	// RateLimit is the user-scope bucket decision consulted at step 2, kept
	// off the wire so the HTTP layer can render it as RateLimit-* headers.
	RateLimit model.RateLimitDecision `json:"-"`
	// RemainingCredits is set on an insufficient-credits denial so the HTTP
	// layer can render the extension field spec.md §7 calls for.
	RemainingCredits int `json:"-"`
}

// creditDebiter is the narrow slice of the credit ledger admission needs;
// satisfied by *CreditLedgerUseCase without importing it as a concrete type.
type creditDebiter interface {
	CheckAndDeduct(ctx context.Context, ownerID, jobID string) (usecaseport.CreditResult, error)
	Refund(ctx context.Context, ownerID, jobID, reason string) error
}

// AdmissionUseCase implements the SUBMIT_JOB and ISSUE_UPLOAD_TARGET
// operations of spec.md §4.1. Identity resolution (step 1) happens in the
// HTTP layer's auth middleware before this use case is invoked; everything
// from rate limiting onward is this type's responsibility.
type AdmissionUseCase struct {
	rateLimiter repository.RateLimiter
	idempotency repository.IdempotencyRepository
	blobStore   adapter.BlobStore
	moderator   adapter.Moderator
	jobs        repository.JobRepository
	queue       repository.QueueRepository
	credits     creditDebiter
	tm          repository.TransactionManager

	rateLimitCfg config.RateLimitConfig
	queueCfg     config.QueueConfig
	creditsCfg   config.CreditsConfig

	logger *zerolog.Logger
}

func NewAdmissionUseCase(
	rateLimiter repository.RateLimiter,
	idempotency repository.IdempotencyRepository,
	blobStore adapter.BlobStore,
	moderator adapter.Moderator,
	jobs repository.JobRepository,
	queue repository.QueueRepository,
	credits creditDebiter,
	tm repository.TransactionManager,
	rateLimitCfg config.RateLimitConfig,
	queueCfg config.QueueConfig,
	creditsCfg config.CreditsConfig,
	logger *zerolog.Logger,
) *AdmissionUseCase {
	return &AdmissionUseCase{
		rateLimiter: rateLimiter, idempotency: idempotency, blobStore: blobStore,
		moderator: moderator, jobs: jobs, queue: queue, credits: credits, tm: tm,
		rateLimitCfg: rateLimitCfg, queueCfg: queueCfg, creditsCfg: creditsCfg, logger: logger,
	}
}

// IssueUploadTarget implements ISSUE_UPLOAD_TARGET.
func (uc *AdmissionUseCase) IssueUploadTarget(ctx context.Context, ownerID, contentType string) (adapter.UploadTarget, error) {
	return uc.blobStore.IssueUploadURL(ctx, ownerID, contentType)
}

// SubmitJob runs the full admission algorithm of spec.md §4.1, steps 2-11.
func (uc *AdmissionUseCase) SubmitJob(ctx context.Context, req SubmitJobRequest) (SubmitJobResponse, error) {
	ctx, span := tracing.Tracer().Start(ctx, "admission.submit_job")
	defer span.End()

	// Step 2: rate limit user then peer, in order.
	userDecision, err := uc.checkRateLimits(ctx, req.OwnerID, req.PeerAddress)
	if err != nil {
		return SubmitJobResponse{RateLimit: userDecision}, err
	}

	// Step 3: idempotency key must be a canonical 128-bit textual form.
	if _, err := uuid.Parse(req.IdempotencyKey); err != nil {
		if req.IdempotencyKey == "" {
			return SubmitJobResponse{}, domain.ErrIdempotencyMissing
		}
		return SubmitJobResponse{}, domain.ErrIdempotencyInvalid
	}

	// Step 4: decode body.
	raw, err := uc.resolveSource(ctx, req.OwnerID, req.Source)
	if err != nil {
		return SubmitJobResponse{}, err
	}
	trimmedPrompt := strings.TrimSpace(req.Prompt)

	// Step 5: preprocessing.
	processed, preRecord, err := imaging.Preprocess(raw)
	if err != nil {
		return SubmitJobResponse{}, domain.ErrUnsupportedMediaType
	}

	// Step 6: moderation, fail closed.
	verdict, err := uc.moderator.Moderate(ctx, processed, adapter.ModerationContext{OwnerID: req.OwnerID, Prompt: trimmedPrompt})
	if err != nil {
		uc.logger.Warn().Err(err).Str("owner_id", req.OwnerID).Msg("moderation service errored, rejecting fail-closed")
		return SubmitJobResponse{}, domain.ErrModerationRejected
	}
	if !verdict.Allowed {
		return SubmitJobResponse{}, domain.ErrModerationRejected
	}

	// Step 7: fingerprint + idempotency consult.
	fingerprint := computeFingerprint(req.Method, req.Path, processed, trimmedPrompt)
	if existing, err := uc.idempotency.Get(ctx, req.OwnerID, req.IdempotencyKey); err == nil {
		if existing.Fingerprint != fingerprint {
			return SubmitJobResponse{}, domain.ErrIdempotencyConflict
		}
		var replayed SubmitJobResponse
		if jsonErr := json.Unmarshal(existing.Body, &replayed); jsonErr == nil {
			replayed.Replayed = true
			return replayed, nil
		}
	} else if err != domain.ErrNotFound {
		return SubmitJobResponse{}, err
	}

	jobID := uuid.NewString()

	// Step 8: debit credits.
	creditResult, err := uc.credits.CheckAndDeduct(ctx, req.OwnerID, jobID)
	if err != nil {
		return SubmitJobResponse{}, err
	}
	if !creditResult.Allowed {
		return SubmitJobResponse{RateLimit: userDecision, RemainingCredits: creditResult.RemainingCounter}, domain.ErrInsufficientCredits
	}

	sourceObject, err := uc.materializeSourceObject(ctx, req.OwnerID, processed, req.Source)
	if err != nil {
		_ = uc.credits.Refund(ctx, req.OwnerID, jobID, "failed to persist source image")
		return SubmitJobResponse{}, err
	}

	// Step 9: create the job record.
	job := &model.Job{
		ID:           jobID,
		OwnerID:      req.OwnerID,
		Status:       model.JobStatusQueued,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
		SourceObject: sourceObject,
		UserPrompt:   trimmedPrompt,
		Preprocess:   preRecord,
		Moderation:   model.ModerationVerdict{Allowed: verdict.Allowed, Flags: verdict.Flags},
		Debit:        model.CreditDebit{Amount: uc.debitedAmount(creditResult), Kind: creditResult.Kind},
	}
	if err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.jobs.Create(ctx, tx, job)
	}); err != nil {
		_ = uc.credits.Refund(ctx, req.OwnerID, jobID, "failed to persist job record")
		return SubmitJobResponse{}, domain.ErrServiceUnavailable
	}

	// Step 10: enqueue the task, carrying the current trace context.
	traceparent, tracestate := tracing.Inject(ctx)
	task := &model.Task{
		ID:           idgen.NewTaskID(),
		JobID:        jobID,
		OwnerID:      req.OwnerID,
		Prompt:       trimmedPrompt,
		SourceObject: sourceObject,
		Debit:        job.Debit,
		Trace:        model.TraceContext{Traceparent: traceparent, Tracestate: tracestate},
		Attempt:      0,
		MaxAttempts:  uc.queueCfg.MaxAttempts,
		AvailableAt:  time.Now(),
		CreatedAt:    time.Now(),
	}
	enqueueErr := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.queue.Enqueue(ctx, tx, task)
	})
	if enqueueErr != nil {
		_ = uc.credits.Refund(ctx, req.OwnerID, jobID, "enqueue failed")
		_ = uc.jobs.MarkFailed(ctx, jobID, model.JobError{Kind: model.ErrorKindInternal, Message: "failed to enqueue task"})
		return SubmitJobResponse{}, domain.ErrServiceUnavailable
	}

	resp := SubmitJobResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		Credit:    job.Debit,
		Location:  fmt.Sprintf("/jobs/%s", jobID),
		RateLimit: userDecision,
	}

	// Step 11: store the canonical response for replay within the TTL window.
	body, _ := json.Marshal(resp)
	entry := &model.IdempotencyEntry{
		OwnerID:     req.OwnerID,
		Key:         req.IdempotencyKey,
		Fingerprint: fingerprint,
		Status:      202,
		Body:        body,
		CreatedAt:   time.Now(),
	}
	if err := uc.idempotency.PutWithTTL(ctx, entry, 24*time.Hour); err != nil {
		uc.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to persist idempotency entry")
	}

	return resp, nil
}

// checkRateLimits returns the user-scope decision regardless of outcome so
// the caller can render RateLimit-* headers even on a denial.
func (uc *AdmissionUseCase) checkRateLimits(ctx context.Context, ownerID, peer string) (model.RateLimitDecision, error) {
	userDecision, err := uc.rateLimiter.Allow(ctx, model.RateLimitScopeUser, ownerID, uc.rateLimitCfg.UserLimit, uc.rateLimitCfg.UserInterval)
	if err != nil {
		return model.RateLimitDecision{}, err
	}
	if !userDecision.Allowed {
		metrics.IncRateLimitDecision("user", "deny")
		return userDecision, domain.ErrRateLimited
	}
	metrics.IncRateLimitDecision("user", "admit")

	peerDecision, err := uc.rateLimiter.Allow(ctx, model.RateLimitScopePeer, peer, uc.rateLimitCfg.IPLimit, uc.rateLimitCfg.IPInterval)
	if err != nil {
		return userDecision, err
	}
	if !peerDecision.Allowed {
		metrics.IncRateLimitDecision("peer", "deny")
		return userDecision, domain.ErrRateLimited
	}
	metrics.IncRateLimitDecision("peer", "admit")
	return userDecision, nil
}

func (uc *AdmissionUseCase) resolveSource(ctx context.Context, ownerID string, src SubmitJobSource) ([]byte, error) {
	if len(src.InlineImage) > 0 {
		if len(src.InlineImage) > maxInlineImageBytes {
			return nil, domain.ErrFileTooLarge
		}
		if _, ok := imaging.SniffContentType(src.InlineImage); !ok {
			return nil, domain.ErrUnsupportedMediaType
		}
		return src.InlineImage, nil
	}
	if src.BlobObject != "" {
		return uc.blobStore.Download(ctx, ownerID, src.BlobObject)
	}
	return nil, domain.ErrInvalidArgument
}

// materializeSourceObject ensures the task can carry a stored object
// reference regardless of which input shape admission received: an inline
// upload is persisted now, a pre-uploaded reference is reused as-is.
func (uc *AdmissionUseCase) materializeSourceObject(ctx context.Context, ownerID string, processed []byte, src SubmitJobSource) (string, error) {
	if src.BlobObject != "" {
		return src.BlobObject, nil
	}
	return uc.blobStore.Put(ctx, ownerID, "image/jpeg", processed)
}

func computeFingerprint(method, path string, body []byte, prompt string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (uc *AdmissionUseCase) debitedAmount(r usecaseport.CreditResult) int64 {
	if r.Kind == model.CreditKindFree {
		return 1
	}
	return uc.creditsCfg.DebitPerJob
}
