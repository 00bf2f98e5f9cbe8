package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	// watchPoll is how often Watch re-reads the row while no shared
	// notification bus is available. LISTEN/NOTIFY would need one
	// dedicated connection per open stream, which does not scale with the
	// pool the rest of the repository shares, so polling a single indexed
	// row is the simpler and cheaper choice for the status stream.
	watchPoll time.Duration
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool, watchPoll: 500 * time.Millisecond}
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, j *model.Job) error {
	preprocess, err := json.Marshal(j.Preprocess)
	if err != nil {
		return err
	}
	moderation, err := json.Marshal(j.Moderation)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO jobs (
  id, owner_id, status, created_at, updated_at, attempt,
  source_object, user_prompt, preprocess, moderation, debit_amount, debit_kind
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	_, err = execSQL(ctx, r.pool, tx, q,
		j.ID, j.OwnerID, string(j.Status), j.CreatedAt, j.UpdatedAt, j.Attempt,
		j.SourceObject, j.UserPrompt, preprocess, moderation, j.Debit.Amount, string(j.Debit.Kind))
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `
SELECT id, owner_id, status, created_at, updated_at, attempt, source_object, user_prompt,
       preprocess, moderation, debit_amount, debit_kind, classification, enhanced_prompt,
       provider_request_id, provider_billed_units, provider_estimated_cost, provider_prompt_tokens,
       classify_ms, prompt_ms, restore_ms, total_ms, result_object, error_kind, error_message
FROM jobs WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status, debitKind string
	var preprocess, moderation, classification []byte
	var providerRequestID, errKind, errMessage *string
	var providerBilledUnits *int64
	var providerEstimatedCost *float64
	var providerPromptTokens *int
	var classifyMs, promptMs, restoreMs, totalMs *int64
	var resultObject *string

	err := row.Scan(
		&j.ID, &j.OwnerID, &status, &j.CreatedAt, &j.UpdatedAt, &j.Attempt, &j.SourceObject, &j.UserPrompt,
		&preprocess, &moderation, &j.Debit.Amount, &debitKind, &classification, &j.EnhancedPrompt,
		&providerRequestID, &providerBilledUnits, &providerEstimatedCost, &providerPromptTokens,
		&classifyMs, &promptMs, &restoreMs, &totalMs, &resultObject, &errKind, &errMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	j.Status = model.JobStatus(status)
	j.Debit.Kind = model.CreditKind(debitKind)
	if len(preprocess) > 0 {
		_ = json.Unmarshal(preprocess, &j.Preprocess)
	}
	if len(moderation) > 0 {
		_ = json.Unmarshal(moderation, &j.Moderation)
	}
	if len(classification) > 0 {
		_ = json.Unmarshal(classification, &j.Classification)
	}
	if providerRequestID != nil {
		j.Provider.RequestID = *providerRequestID
	}
	if providerBilledUnits != nil {
		j.Provider.BilledUnits = *providerBilledUnits
	}
	if providerEstimatedCost != nil {
		j.Provider.EstimatedCost = *providerEstimatedCost
	}
	if providerPromptTokens != nil {
		j.Provider.PromptTokens = *providerPromptTokens
	}
	if classifyMs != nil {
		j.Timings.ClassifyMs = *classifyMs
	}
	if promptMs != nil {
		j.Timings.PromptMs = *promptMs
	}
	if restoreMs != nil {
		j.Timings.RestoreMs = *restoreMs
	}
	if totalMs != nil {
		j.Timings.TotalMs = *totalMs
	}
	if resultObject != nil {
		j.ResultObject = *resultObject
	}
	if errKind != nil && errMessage != nil {
		j.Error = &model.JobError{Kind: model.ErrorKind(*errKind), Message: *errMessage}
	}
	return &j, nil
}

func (r *jobRepo) MarkRunning(ctx context.Context, id string, attempt int) (*model.Job, error) {
	const q = `
UPDATE jobs SET status = $2, attempt = $3, updated_at = now()
WHERE id = $1
RETURNING id;`
	row, err := pickRow(ctx, r.pool, nil, q, id, string(model.JobStatusRunning), attempt)
	if err != nil {
		return nil, err
	}
	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return r.FindByID(ctx, nil, id)
}

func (r *jobRepo) MarkSucceeded(ctx context.Context, id string, classification map[string]float64, prompt string, provider model.ProviderMetadata, timings model.Timings, resultObject string) error {
	classJSON, err := json.Marshal(classification)
	if err != nil {
		return err
	}
	const q = `
UPDATE jobs SET
  status = $2, classification = $3, enhanced_prompt = $4,
  provider_request_id = $5, provider_billed_units = $6, provider_estimated_cost = $7, provider_prompt_tokens = $8,
  classify_ms = $9, prompt_ms = $10, restore_ms = $11, total_ms = $12,
  result_object = $13, updated_at = now()
WHERE id = $1;`
	_, err = execSQL(ctx, r.pool, nil, q,
		id, string(model.JobStatusSucceeded), classJSON, prompt,
		provider.RequestID, provider.BilledUnits, provider.EstimatedCost, provider.PromptTokens,
		timings.ClassifyMs, timings.PromptMs, timings.RestoreMs, timings.TotalMs, resultObject)
	return err
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, jobErr model.JobError) error {
	const q = `
UPDATE jobs SET status = $2, error_kind = $3, error_message = $4, updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id, string(model.JobStatusFailed), string(jobErr.Kind), jobErr.Message)
	return err
}

// Watch polls the row at r.watchPoll and pushes a snapshot whenever the
// status or updated_at changes, closing the channel once the job reaches a
// terminal status or ctx is cancelled.
func (r *jobRepo) Watch(ctx context.Context, id string) (<-chan *model.Job, error) {
	initial, err := r.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	out := make(chan *model.Job, 1)
	out <- initial

	go func() {
		defer close(out)
		lastUpdated := initial.UpdatedAt
		if initial.Status.Terminal() {
			return
		}
		ticker := time.NewTicker(r.watchPoll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j, err := r.FindByID(ctx, nil, id)
				if err != nil {
					return
				}
				if j.UpdatedAt.After(lastUpdated) {
					lastUpdated = j.UpdatedAt
					select {
					case out <- j:
					case <-ctx.Done():
						return
					}
				}
				if j.Status.Terminal() {
					return
				}
			}
		}
	}()

	return out, nil
}
