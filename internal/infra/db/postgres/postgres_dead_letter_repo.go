package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.DeadLetterRepository = (*deadLetterRepo)(nil)

type deadLetterRepo struct {
	pool *pgxpool.Pool
}

func NewDeadLetterRepo(pool *pgxpool.Pool) *deadLetterRepo {
	return &deadLetterRepo{pool: pool}
}

func (r *deadLetterRepo) Put(ctx context.Context, dl *model.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	taskJSON, err := json.Marshal(dl.OriginalTask)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO dead_letters (id, job_id, owner_id, original_task, failure_kind, failure_message, failure_stack, attempts, failed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	original_task = EXCLUDED.original_task,
	failure_kind = EXCLUDED.failure_kind,
	failure_message = EXCLUDED.failure_message,
	failure_stack = EXCLUDED.failure_stack,
	attempts = EXCLUDED.attempts,
	failed_at = EXCLUDED.failed_at;`
	_, err = execSQL(ctx, r.pool, nil, q, dl.ID, dl.JobID, dl.OwnerID, taskJSON, string(dl.FailureKind), dl.FailureMessage, dl.FailureStack, dl.Attempts, dl.FailedAt)
	return err
}

func (r *deadLetterRepo) Get(ctx context.Context, id string) (*model.DeadLetter, error) {
	const q = `
SELECT id, job_id, owner_id, original_task, failure_kind, failure_message, failure_stack, attempts, failed_at
FROM dead_letters WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	return scanDeadLetter(row)
}

func scanDeadLetter(row pgx.Row) (*model.DeadLetter, error) {
	var dl model.DeadLetter
	var taskJSON []byte
	var kind string
	if err := row.Scan(&dl.ID, &dl.JobID, &dl.OwnerID, &taskJSON, &kind, &dl.FailureMessage, &dl.FailureStack, &dl.Attempts, &dl.FailedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	dl.FailureKind = model.ErrorKind(kind)
	if len(taskJSON) > 0 {
		_ = json.Unmarshal(taskJSON, &dl.OriginalTask)
	}
	return &dl, nil
}

func (r *deadLetterRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM dead_letters WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, id)
	return err
}

func (r *deadLetterRepo) ListByUser(ctx context.Context, ownerID string) ([]model.DeadLetter, error) {
	const q = `
SELECT id, job_id, owner_id, original_task, failure_kind, failure_message, failure_stack, attempts, failed_at
FROM dead_letters WHERE owner_id = $1 ORDER BY failed_at DESC;`
	return r.list(ctx, q, ownerID)
}

func (r *deadLetterRepo) ListAll(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	if limit <= 0 {
		limit = 1_000_000
	}
	const q = `
SELECT id, job_id, owner_id, original_task, failure_kind, failure_message, failure_stack, attempts, failed_at
FROM dead_letters ORDER BY failed_at DESC LIMIT $1;`
	return r.list(ctx, q, limit)
}

func (r *deadLetterRepo) list(ctx context.Context, q string, arg interface{}) ([]model.DeadLetter, error) {
	rows, err := queryRows(ctx, r.pool, nil, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dl)
	}
	return out, rows.Err()
}

func (r *deadLetterRepo) AppendReplayAudit(ctx context.Context, a *model.ReplayAudit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const q = `
INSERT INTO replay_audits (id, dead_letter_id, job_id, operator, reason, created_at)
VALUES ($1,$2,$3,$4,$5, COALESCE($6, now()));`
	_, err := execSQL(ctx, r.pool, nil, q, a.ID, a.DeadLetterID, a.JobID, a.Operator, a.Reason, a.CreatedAt)
	return err
}

func (r *deadLetterRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM dead_letters WHERE failed_at < $1;`
	tag, err := execSQL(ctx, r.pool, nil, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
