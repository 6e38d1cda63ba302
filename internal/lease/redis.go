package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultRedisPrefix = "gold:quote:"

// consumeScript performs the compare-and-clear in one atomic step: read
// the lock, reject a reused one, then overwrite the value with a consumed
// marker while keeping the key's TTL.
var consumeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return ""
end
if v == "CONSUMED" then
  return "CONSUMED"
end
redis.call("SET", KEYS[1], "CONSUMED", "KEEPTTL")
return v
`)

// RedisStore keeps quote locks in Redis so multiple service instances can
// share them. Keys live for twice the validity window: past validity but
// within the key TTL a consume still reports ErrExpired; after the key
// expires it degrades to ErrNotFound.
type RedisStore struct {
	client   *redis.Client
	validity time.Duration
	prefix   string

	now func() time.Time
}

func NewRedisStore(client *redis.Client, validity time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client:   client,
		validity: validity,
		prefix:   prefix,
		now:      time.Now,
	}
}

func (s *RedisStore) Create(ctx context.Context, userID int64, amountINR, buyPrice decimal.Decimal) (Lock, error) {
	lock := Lock{
		ID:           uuid.NewString(),
		UserID:       userID,
		Grams:        computeGrams(amountINR, buyPrice),
		AmountINR:    amountINR,
		PricePerGram: buyPrice,
		ExpiresAt:    s.now().Add(s.validity),
	}

	payload, err := json.Marshal(lock)
	if err != nil {
		return Lock{}, err
	}

	if err := s.client.Set(ctx, s.prefix+lock.ID, payload, 2*s.validity).Err(); err != nil {
		return Lock{}, fmt.Errorf("failed to store quote lock: %w", err)
	}

	return lock, nil
}

func (s *RedisStore) Consume(ctx context.Context, id string) (Lock, error) {
	key := s.prefix + id

	res, err := consumeScript.Run(ctx, s.client, []string{key}).Text()
	if err != nil {
		return Lock{}, fmt.Errorf("failed to consume quote lock: %w", err)
	}

	switch res {
	case "":
		return Lock{}, ErrNotFound
	case "CONSUMED":
		return Lock{}, ErrAlreadyConsumed
	}

	var lock Lock
	if err := json.Unmarshal([]byte(res), &lock); err != nil {
		return Lock{}, fmt.Errorf("corrupt quote lock payload: %w", err)
	}

	if s.now().After(lock.ExpiresAt) {
		s.client.Del(ctx, key)
		return Lock{}, ErrExpired
	}

	return lock, nil
}
