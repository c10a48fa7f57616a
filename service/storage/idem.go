package storage

import (
	"context"
	"time"

	"PPRelay/tools/errs"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// IdemStore remembers which (sender, message_id) pairs were already processed,
// for a bounded retention window.
type IdemStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// IdemKey scopes a message id to its sender; two users may pick the same id.
func IdemKey(sender, messageID string) string {
	return sender + "|" + messageID
}

// ----- in-memory (single process) -----

type memIdem struct {
	cache *lru.LRU[string, struct{}]
}

// NewMemIdem keeps at most size keys, each for ttl.
func NewMemIdem(size int, ttl time.Duration) IdemStore {
	if size <= 0 {
		size = 100_000
	}
	return &memIdem{cache: lru.NewLRU[string, struct{}](size, nil, ttl)}
}

func (m *memIdem) Seen(_ context.Context, key string) (bool, error) {
	return m.cache.Contains(key), nil
}

func (m *memIdem) Mark(_ context.Context, key string) error {
	m.cache.Add(key, struct{}{})
	return nil
}

// ----- Redis (shared by every relay node) -----

type redisIdem struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisIdem(rdb redis.Cmdable, prefix string, ttl time.Duration) IdemStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &redisIdem{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *redisIdem) key(k string) string { return r.prefix + ":" + k }

func (r *redisIdem) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, errs.ErrStoreUnavailable.Wrap(errors.Wrap(err, "idem exists"))
	}
	return n == 1, nil
}

// Mark is SET NX EX: marking twice keeps the first expiry.
func (r *redisIdem) Mark(ctx context.Context, key string) error {
	if err := r.rdb.SetNX(ctx, r.key(key), "1", r.ttl).Err(); err != nil {
		return errs.ErrStoreUnavailable.Wrap(errors.Wrap(err, "idem setnx"))
	}
	return nil
}
