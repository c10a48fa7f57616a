package storage

import (
	"context"
	"encoding/json"
	"time"

	"PPRelay/logger"
	"PPRelay/module/chat/model"
	"PPRelay/tools/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ----- pending queue: one Redis list per (namespace, recipient) -----
// RPUSH appends to the tail. A drain reads the head and removes it only after
// delivery. Entries are the JSON-encoded model.Message.

type RedisPendingStore struct {
	rdb    redis.Cmdable
	prefix string
	retry  RetryPolicy
	log    *zap.Logger
}

func NewRedisPendingStore(rdb redis.Cmdable, prefix string, retry RetryPolicy) *RedisPendingStore {
	if prefix == "" {
		prefix = "pending"
	}
	return &RedisPendingStore{
		rdb:    rdb,
		prefix: prefix,
		retry:  retry,
		log:    logger.Named("pending.redis"),
	}
}

func (s *RedisPendingStore) do(ctx context.Context, what string, op func() error) error {
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, s.retry.backOff(ctx), func(err error, next time.Duration) {
		s.log.Warn("redis op failed, retrying", zap.String("op", what), zap.Duration("in", next), zap.Error(err))
	})
}

func (s *RedisPendingStore) Enqueue(ctx context.Context, ns model.Namespace, recipient string, msg model.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode pending message")
	}
	key := pendingKey(s.prefix, ns, recipient)
	err = s.do(ctx, "rpush", func() error {
		return s.rdb.RPush(ctx, key, b).Err()
	})
	if err != nil {
		return errs.ErrStoreUnavailable.Wrap(errors.Wrapf(err, "rpush %s", key))
	}
	return nil
}

// popHead removes the head only if it is still raw, so a retry after a reply
// was lost cannot take the next entry.
var popHead = redis.NewScript(`
if redis.call('LINDEX', KEYS[1], 0) == ARGV[1] then
	redis.call('LPOP', KEYS[1])
	return 1
end
return 0
`)

// DrainAll reads the head with LINDEX, delivers it and only then removes it.
// A crash between deliver and removal replays the entry: a duplicate, never a loss.
func (s *RedisPendingStore) DrainAll(ctx context.Context, ns model.Namespace, recipient string, deliver DeliverFunc) (int, error) {
	key := pendingKey(s.prefix, ns, recipient)
	delivered := 0
	for {
		var (
			raw   string
			found bool
		)
		err := s.do(ctx, "lindex", func() error {
			v, err := s.rdb.LIndex(ctx, key, 0).Result()
			if errors.Is(err, redis.Nil) {
				found = false
				return nil
			}
			if err != nil {
				return err
			}
			raw, found = v, true
			return nil
		})
		if err != nil {
			return delivered, errs.ErrStoreUnavailable.Wrap(errors.Wrapf(err, "lindex %s", key))
		}
		if !found {
			return delivered, nil
		}

		var msg model.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			s.deadLetter(ctx, ns, recipient, raw, err)
			if err := s.removeHead(ctx, key, raw); err != nil {
				return delivered, err
			}
			continue
		}

		if !deliver(msg) {
			// never removed, still at the head
			return delivered, nil
		}
		delivered++
		if err := s.removeHead(ctx, key, raw); err != nil {
			return delivered, err
		}
	}
}

func (s *RedisPendingStore) removeHead(ctx context.Context, key, raw string) error {
	// the entry was already handed out; finish even if the caller is gone
	rctx := context.WithoutCancel(ctx)
	err := s.do(rctx, "pophead", func() error {
		return popHead.Run(rctx, s.rdb, []string{key}, raw).Err()
	})
	if err != nil {
		s.log.Error("delivered entry left at head, it will be replayed",
			zap.String("key", key), zap.Error(err))
		return errs.ErrStoreUnavailable.Wrap(errors.Wrapf(err, "pophead %s", key))
	}
	return nil
}

func (s *RedisPendingStore) deadLetter(ctx context.Context, ns model.Namespace, recipient, raw string, cause error) {
	key := deadKey(s.prefix, ns, recipient)
	s.log.Warn("undecodable pending entry moved to dead letter",
		zap.String("key", key), zap.Error(cause))
	dctx := context.WithoutCancel(ctx)
	if err := s.do(dctx, "rpush-dead", func() error {
		return s.rdb.RPush(dctx, key, raw).Err()
	}); err != nil {
		s.log.Error("dead letter write failed", zap.String("key", key), zap.String("raw", raw), zap.Error(err))
	}
}

func (s *RedisPendingStore) Length(ctx context.Context, ns model.Namespace, recipient string) (int64, error) {
	key := pendingKey(s.prefix, ns, recipient)
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, errs.ErrStoreUnavailable.Wrap(errors.Wrapf(err, "llen %s", key))
	}
	return n, nil
}

// DeadLetters returns entries that could not be decoded, oldest first.
func (s *RedisPendingStore) DeadLetters(ctx context.Context, ns model.Namespace, recipient string) ([]string, error) {
	return s.rdb.LRange(ctx, deadKey(s.prefix, ns, recipient), 0, -1).Result()
}
