package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemIdem(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemIdem(2, 50*time.Millisecond)

	seen, err := s.Seen(ctx, IdemKey("alice", "m1"))
	req.NoError(err)
	req.False(seen)

	req.NoError(s.Mark(ctx, IdemKey("alice", "m1")))
	seen, _ = s.Seen(ctx, IdemKey("alice", "m1"))
	req.True(seen)

	// same id from another sender is a different message
	seen, _ = s.Seen(ctx, IdemKey("bob", "m1"))
	req.False(seen)

	req.Eventually(func() bool {
		seen, _ := s.Seen(ctx, IdemKey("alice", "m1"))
		return !seen
	}, time.Second, 10*time.Millisecond)
}

func TestMemIdemIsBounded(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemIdem(2, time.Minute)
	for _, k := range []string{"a", "b", "c"} {
		req.NoError(s.Mark(ctx, k))
	}
	seen, _ := s.Seen(ctx, "a")
	req.False(seen)
	seen, _ = s.Seen(ctx, "c")
	req.True(seen)
}

func TestRedisIdem(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisIdem(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "idem", time.Minute)

	seen, err := s.Seen(ctx, IdemKey("alice", "m1"))
	req.NoError(err)
	req.False(seen)

	req.NoError(s.Mark(ctx, IdemKey("alice", "m1")))
	seen, err = s.Seen(ctx, IdemKey("alice", "m1"))
	req.NoError(err)
	req.True(seen)
	req.True(mr.Exists("idem:alice|m1"))

	mr.FastForward(2 * time.Minute)
	seen, err = s.Seen(ctx, IdemKey("alice", "m1"))
	req.NoError(err)
	req.False(seen)
}

func TestRedisIdemMarkKeepsFirstExpiry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisIdem(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "idem", time.Minute)

	req.NoError(s.Mark(ctx, IdemKey("alice", "m1")))
	mr.FastForward(40 * time.Second)
	req.NoError(s.Mark(ctx, IdemKey("alice", "m1")))
	req.Equal(20*time.Second, mr.TTL("idem:alice|m1"))

	mr.FastForward(30 * time.Second)
	seen, err := s.Seen(ctx, IdemKey("alice", "m1"))
	req.NoError(err)
	req.False(seen)
}
