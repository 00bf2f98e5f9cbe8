package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque handle passed through use cases into repositories; a nil
// Tx tells the repository to run against the pool directly. Modeled on the
// teacher's TransactionManager so every repository accepts the same handle.
type Tx interface{}

// TransactionManager runs fn inside a single database transaction, committing
// on nil error and rolling back otherwise.
type TransactionManager interface {
	WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
