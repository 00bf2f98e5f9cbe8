package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/imagerestore/controlplane/internal/infra/idgen"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.QueueRepository = (*queueRepo)(nil)

type queueRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewQueueRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *queueRepo {
	return &queueRepo{pool: pool, tm: tm}
}

func (r *queueRepo) Enqueue(ctx context.Context, tx repository.Tx, t *model.Task) error {
	if t.ID == "" {
		t.ID = idgen.NewTaskID()
	}
	if t.AvailableAt.IsZero() {
		t.AvailableAt = time.Now()
	}
	var replayOrigJobID, replayDLID, replayReason *string
	var replayPrevAttempts *int
	if t.Replay != nil {
		replayOrigJobID = &t.Replay.OriginalJobID
		replayDLID = &t.Replay.DeadLetterID
		replayReason = &t.Replay.Reason
		replayPrevAttempts = &t.Replay.PreviousAttempts
	}

	const q = `
INSERT INTO tasks (
  id, job_id, owner_id, prompt, source_object, debit_amount, debit_kind,
  traceparent, tracestate, attempt, max_attempts, available_at, created_at,
  replay_original_job_id, replay_dead_letter_id, replay_previous_attempts, replay_reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.JobID, t.OwnerID, t.Prompt, t.SourceObject, t.Debit.Amount, string(t.Debit.Kind),
		t.Trace.Traceparent, t.Trace.Tracestate, t.Attempt, t.MaxAttempts, t.AvailableAt, time.Now(),
		replayOrigJobID, replayDLID, replayPrevAttempts, replayReason)
	return err
}

// Claim uses FOR UPDATE SKIP LOCKED so concurrent worker processes never pick
// the same row (spec.md §4.5, §5).
func (r *queueRepo) Claim(ctx context.Context, workerID string) (*model.Task, error) {
	var task *model.Task
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const selectQ = `
SELECT id FROM tasks
WHERE locked_by IS NULL AND available_at <= now()
ORDER BY available_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`
		row, err := pickRow(ctx, r.pool, tx, selectQ)
		if err != nil {
			return err
		}
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}

		const lockQ = `
UPDATE tasks SET locked_by = $2, locked_at = now(), heartbeat_at = now()
WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, lockQ, id, workerID); err != nil {
			return err
		}

		fetched, err := r.findByID(ctx, tx, id)
		if err != nil {
			return err
		}
		task = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *queueRepo) findByID(ctx context.Context, tx repository.Tx, id string) (*model.Task, error) {
	const q = `
SELECT id, job_id, owner_id, prompt, source_object, debit_amount, debit_kind,
       traceparent, tracestate, attempt, max_attempts, available_at, locked_by, locked_at, heartbeat_at, created_at,
       replay_original_job_id, replay_dead_letter_id, replay_previous_attempts, replay_reason
FROM tasks WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTask(row)
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var debitKind string
	var lockedBy *string
	var lockedAt, heartbeatAt *time.Time
	var replayOrigJobID, replayDLID, replayReason *string
	var replayPrevAttempts *int

	err := row.Scan(
		&t.ID, &t.JobID, &t.OwnerID, &t.Prompt, &t.SourceObject, &t.Debit.Amount, &debitKind,
		&t.Trace.Traceparent, &t.Trace.Tracestate, &t.Attempt, &t.MaxAttempts, &t.AvailableAt, &lockedBy, &lockedAt, &heartbeatAt, &t.CreatedAt,
		&replayOrigJobID, &replayDLID, &replayPrevAttempts, &replayReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Debit.Kind = model.CreditKind(debitKind)
	if lockedBy != nil {
		t.LockedBy = *lockedBy
	}
	if lockedAt != nil {
		t.LockedAt = *lockedAt
	}
	if heartbeatAt != nil {
		t.HeartbeatAt = *heartbeatAt
	}
	if replayOrigJobID != nil {
		t.Replay = &model.ReplayMarker{
			OriginalJobID: *replayOrigJobID,
		}
		if replayDLID != nil {
			t.Replay.DeadLetterID = *replayDLID
		}
		if replayPrevAttempts != nil {
			t.Replay.PreviousAttempts = *replayPrevAttempts
		}
		if replayReason != nil {
			t.Replay.Reason = *replayReason
		}
	}
	return &t, nil
}

func (r *queueRepo) Heartbeat(ctx context.Context, taskID, workerID string) error {
	const q = `UPDATE tasks SET heartbeat_at = now() WHERE id = $1 AND locked_by = $2;`
	tag, err := execSQL(ctx, r.pool, nil, q, taskID, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *queueRepo) Reschedule(ctx context.Context, taskID string, delay time.Duration) error {
	const q = `
UPDATE tasks SET locked_by = NULL, locked_at = NULL, heartbeat_at = NULL,
  attempt = attempt + 1, available_at = now() + $2
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, taskID, delay)
	return err
}

func (r *queueRepo) Complete(ctx context.Context, taskID string) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		task, err := r.findByID(ctx, tx, taskID)
		if err != nil {
			return err
		}
		const insertHeader = `
INSERT INTO task_headers (task_id, job_id, owner_id, outcome, attempts, finished_at)
VALUES ($1,$2,$3,'completed',$4, now());`
		if _, err := execSQL(ctx, r.pool, tx, insertHeader, task.ID, task.JobID, task.OwnerID, task.Attempt); err != nil {
			return err
		}
		const del = `DELETE FROM tasks WHERE id = $1;`
		_, err = execSQL(ctx, r.pool, tx, del, taskID)
		return err
	})
}

func (r *queueRepo) Exhaust(ctx context.Context, taskID string) (*model.Task, error) {
	var task *model.Task
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := r.findByID(ctx, tx, taskID)
		if err != nil {
			return err
		}
		const insertHeader = `
INSERT INTO task_headers (task_id, job_id, owner_id, outcome, attempts, finished_at)
VALUES ($1,$2,$3,'failed',$4, now());`
		if _, err := execSQL(ctx, r.pool, tx, insertHeader, t.ID, t.JobID, t.OwnerID, t.Attempt); err != nil {
			return err
		}
		const del = `DELETE FROM tasks WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, del, taskID); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *queueRepo) RecoverStalled(ctx context.Context, staleAfter time.Duration) (int, error) {
	const q = `
UPDATE tasks SET locked_by = NULL, locked_at = NULL, heartbeat_at = NULL
WHERE locked_by IS NOT NULL AND heartbeat_at < now() - $1::interval;`
	tag, err := execSQL(ctx, r.pool, nil, q, staleAfter)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *queueRepo) RecentCompleted(ctx context.Context, limit int) ([]model.TaskHeader, error) {
	return r.recentByOutcome(ctx, "completed", limit)
}

func (r *queueRepo) RecentFailed(ctx context.Context, limit int) ([]model.TaskHeader, error) {
	return r.recentByOutcome(ctx, "failed", limit)
}

func (r *queueRepo) recentByOutcome(ctx context.Context, outcome string, limit int) ([]model.TaskHeader, error) {
	const q = `
SELECT task_id, job_id, owner_id, outcome, attempts, finished_at
FROM task_headers WHERE outcome = $1 ORDER BY finished_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, nil, q, outcome, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TaskHeader
	for rows.Next() {
		var h model.TaskHeader
		if err := rows.Scan(&h.TaskID, &h.JobID, &h.OwnerID, &h.Outcome, &h.Attempts, &h.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
