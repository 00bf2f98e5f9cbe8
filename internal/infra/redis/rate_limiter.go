package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	"github.com/imagerestore/controlplane/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

// luaAdmit is the single canonical atomic admission script (spec.md §4.4,
// §9: "two divergent rate-limit fallbacks exist in the source; pick one").
// KEYS[1] = bucket key. ARGV[1] = limit, ARGV[2] = window seconds, ARGV[3] = now unix seconds.
// Returns {allowed(0/1), remaining, reset_unix}.
var luaAdmit = redis.NewScript(`
local remaining = tonumber(redis.call('HGET', KEYS[1], 'remaining'))
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

if remaining == nil or reset == nil or reset <= now then
	remaining = limit - 1
	reset = now + window
	redis.call('HSET', KEYS[1], 'remaining', remaining, 'reset', reset)
	redis.call('EXPIRE', KEYS[1], window)
	return {1, remaining, reset}
end

if remaining <= 0 then
	return {0, 0, reset}
end

remaining = remaining - 1
redis.call('HSET', KEYS[1], 'remaining', remaining)
return {1, remaining, reset}
`)

// RateLimiter is the shared-store-backed token bucket admission described in
// spec.md §4.4. It falls back to an in-process bucket, identical in
// semantics, when the shared store is unreachable — correctness is
// preserved single-process but distributed admission is lost, exactly as
// spec.md documents.
type RateLimiter struct {
	client   *Client
	fallback *inProcessLimiter
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, fallback: newInProcessLimiter()}
}

func (r *RateLimiter) Allow(ctx context.Context, scope model.RateLimitScope, principal string, limit int, window time.Duration) (model.RateLimitDecision, error) {
	key := bucketKey(scope, principal)
	now := time.Now()

	res, err := r.client.Eval(ctx, luaAdmit, []string{key}, limit, int(window.Seconds()), now.Unix())
	if err != nil {
		// Shared store unreachable: degrade to single-process semantics rather
		// than fail closed on every request.
		decision := r.fallback.allow(key, limit, window, now)
		metrics.IncRateLimitDecision(string(scope), resultLabel(decision.Allowed))
		return decision, nil
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 3 {
		return model.RateLimitDecision{}, fmt.Errorf("rate limiter: unexpected script result %v", res)
	}
	allowed := toInt64(arr[0]) == 1
	remaining := int(toInt64(arr[1]))
	resetUnix := toInt64(arr[2])
	decision := model.RateLimitDecision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(resetUnix, 0),
	}
	metrics.IncRateLimitDecision(string(scope), resultLabel(allowed))
	return decision, nil
}

func resultLabel(allowed bool) string {
	if allowed {
		return "admit"
	}
	return "deny"
}

func bucketKey(scope model.RateLimitScope, principal string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, principal)
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

// inProcessLimiter reproduces the exact algorithm of luaAdmit with a mutex
// instead of a Lua script, for single-node operation when Redis is down.
type inProcessLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
}

type bucketState struct {
	remaining int
	reset     time.Time
}

func newInProcessLimiter() *inProcessLimiter {
	return &inProcessLimiter{buckets: make(map[string]*bucketState)}
}

func (l *inProcessLimiter) allow(key string, limit int, window time.Duration, now time.Time) model.RateLimitDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || !b.reset.After(now) {
		b = &bucketState{remaining: limit - 1, reset: now.Add(window)}
		l.buckets[key] = b
		return model.RateLimitDecision{Allowed: true, Limit: limit, Remaining: b.remaining, Reset: b.reset}
	}
	if b.remaining <= 0 {
		return model.RateLimitDecision{Allowed: false, Limit: limit, Remaining: 0, Reset: b.reset}
	}
	b.remaining--
	return model.RateLimitDecision{Allowed: true, Limit: limit, Remaining: b.remaining, Reset: b.reset}
}
