package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CreditCounters holds the fast-path free-tier and paid-balance counters
// behind atomic Lua scripts (spec.md §4.2: "compare-and-increment" /
// "compare-and-decrement" scripts). Postgres holds the durable ledger and
// user document; these counters are the hot path admission consults on
// every request.
type CreditCounters struct {
	client *Client
}

func NewCreditCounters(client *Client) *CreditCounters {
	return &CreditCounters{client: client}
}

func freeCounterKey(ownerID, dayKey string) string {
	return fmt.Sprintf("credits:free:%s:%s", ownerID, dayKey)
}

func paidBalanceKey(ownerID string) string {
	return fmt.Sprintf("credits:paid:%s", ownerID)
}

// luaConsumeFree atomically increments the day-scoped free counter only if
// it is below the limit. KEYS[1] = counter key. ARGV[1] = daily limit,
// ARGV[2] = TTL seconds. Returns {ok(0/1), new_value}.
var luaConsumeFree = redis.NewScript(`
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]))
if current == nil then current = 0 end
if current >= limit then
	return {0, current}
end
local newVal = redis.call('INCR', KEYS[1])
if newVal == 1 then
	redis.call('EXPIRE', KEYS[1], ttl)
end
return {1, newVal}
`)

// luaReleaseFree atomically decrements the free counter but never below zero.
var luaReleaseFree = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
if current == nil or current <= 0 then
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// luaDebitPaid atomically decrements the paid balance if it can cover amount.
// Returns {ok(0/1), new_balance}.
var luaDebitPaid = redis.NewScript(`
local amount = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]))
if current == nil then current = 0 end
if current < amount then
	return {0, current}
end
local newVal = redis.call('DECRBY', KEYS[1], amount)
return {1, newVal}
`)

// luaCreditPaid atomically increments the paid balance (refund path).
var luaCreditPaid = redis.NewScript(`
return redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
`)

func (c *CreditCounters) ConsumeFreeSlot(ctx context.Context, ownerID, dayKey string, limit int, ttl time.Duration) (allowed bool, newValue int, err error) {
	res, err := c.client.Eval(ctx, luaConsumeFree, []string{freeCounterKey(ownerID, dayKey)}, limit, int(ttl.Seconds()))
	if err != nil {
		return false, 0, err
	}
	arr := res.([]interface{})
	return toInt64(arr[0]) == 1, int(toInt64(arr[1])), nil
}

func (c *CreditCounters) ReleaseFreeSlot(ctx context.Context, ownerID, dayKey string) error {
	_, err := c.client.Eval(ctx, luaReleaseFree, []string{freeCounterKey(ownerID, dayKey)})
	return err
}

func (c *CreditCounters) DebitPaid(ctx context.Context, ownerID string, amount int64) (allowed bool, newBalance int64, err error) {
	res, err := c.client.Eval(ctx, luaDebitPaid, []string{paidBalanceKey(ownerID)}, amount)
	if err != nil {
		return false, 0, err
	}
	arr := res.([]interface{})
	return toInt64(arr[0]) == 1, toInt64(arr[1]), nil
}

func (c *CreditCounters) CreditPaid(ctx context.Context, ownerID string, amount int64) (int64, error) {
	res, err := c.client.Eval(ctx, luaCreditPaid, []string{paidBalanceKey(ownerID)}, amount)
	if err != nil {
		return 0, err
	}
	return toInt64(res), nil
}

// SeedPaidBalance primes the fast-path counter from the durable mirror when
// it is absent (e.g. after a Redis restart or for a brand-new user), using
// SETNX so a concurrent debit already in flight is never clobbered.
func (c *CreditCounters) SeedPaidBalance(ctx context.Context, ownerID string, balance int64) error {
	_, err := c.client.SetNX(ctx, paidBalanceKey(ownerID), balance, 0)
	return err
}
