package repository

import (
	"context"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// UserRepository persists the durable mirror of a user's paid balance
// (spec.md §4.2: "asynchronously mirror the new balance to the durable user
// document"). The free counter and the authoritative paid balance live in
// the shared key-value store; this is a best-effort mirror for reporting.
type UserRepository interface {
	Upsert(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
}
