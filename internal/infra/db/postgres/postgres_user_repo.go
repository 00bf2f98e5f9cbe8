package postgres

import (
	"context"
	"errors"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, paid_balance, free_day_key, free_count, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  paid_balance = EXCLUDED.paid_balance,
  free_day_key = EXCLUDED.free_day_key,
  free_count = EXCLUDED.free_count,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.PaidBalance, u.FreeDayKey, u.FreeCount, u.UpdatedAt)
	return err
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT id, paid_balance, free_day_key, free_count, updated_at FROM users WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var u model.User
	if err := row.Scan(&u.ID, &u.PaidBalance, &u.FreeDayKey, &u.FreeCount, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}
