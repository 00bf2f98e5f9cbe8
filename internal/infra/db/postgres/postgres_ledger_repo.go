package postgres

import (
	"context"
	"errors"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	const q = `
INSERT INTO ledger_entries (id, owner_id, job_id, amount, kind, reason, ref_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7, COALESCE($8, now()));`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.OwnerID, e.JobID, e.Amount, string(e.Kind), e.Reason, e.RefID, e.CreatedAt)
	return err
}

func (r *ledgerRepo) LatestDebitForJob(ctx context.Context, jobID string) (*model.LedgerEntry, error) {
	const q = `
SELECT id, owner_id, job_id, amount, kind, reason, ref_id, created_at
FROM ledger_entries
WHERE job_id = $1 AND kind IN ('free','paid')
ORDER BY created_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, nil, q, jobID)
	if err != nil {
		return nil, err
	}
	var e model.LedgerEntry
	var kind string
	if err := row.Scan(&e.ID, &e.OwnerID, &e.JobID, &e.Amount, &kind, &e.Reason, &e.RefID, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	e.Kind = model.CreditKind(kind)
	return &e, nil
}

func (r *ledgerRepo) RefundExists(ctx context.Context, debitID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE kind = 'refund' AND ref_id = $1);`
	row, err := pickRow(ctx, r.pool, nil, q, debitID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}
