package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.IdempotencyRepository = (*IdempotencyStore)(nil)

// IdempotencyStore pins the canonical first response for (owner, key) in the
// shared key-value store, exactly as spec.md §4.3 describes: the entry is a
// TTL-bounded pointer, not a durable record, so it lives in Redis rather
// than Postgres.
type IdempotencyStore struct {
	client *Client
}

func NewIdempotencyStore(client *Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

type idempotencyPayload struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	Body        []byte            `json:"body"`
	CreatedAt   time.Time         `json:"created_at"`
}

func idempotencyKey(ownerID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", ownerID, key)
}

func (s *IdempotencyStore) Get(ctx context.Context, ownerID, key string) (*model.IdempotencyEntry, error) {
	raw, err := s.client.Get(ctx, idempotencyKey(ownerID, key))
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var p idempotencyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &model.IdempotencyEntry{
		OwnerID:     ownerID,
		Key:         key,
		Fingerprint: p.Fingerprint,
		Status:      p.Status,
		Headers:     p.Headers,
		Body:        p.Body,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (s *IdempotencyStore) PutWithTTL(ctx context.Context, e *model.IdempotencyEntry, ttl time.Duration) error {
	p := idempotencyPayload{
		Fingerprint: e.Fingerprint,
		Status:      e.Status,
		Headers:     e.Headers,
		Body:        e.Body,
		CreatedAt:   e.CreatedAt,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKey(e.OwnerID, e.Key), raw, ttl)
}
