package storage

import (
	"context"
	"encoding/json"
	"sync"

	"PPRelay/module/chat/model"

	"github.com/pkg/errors"
)

// MemPendingStore keeps queues in process memory. It has the same ordering and
// requeue semantics as the Redis store but does not survive a restart; use it
// for tests and single-node development. Empty queues are forgotten.
type MemPendingStore struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func NewMemPendingStore() *MemPendingStore {
	return &MemPendingStore{queues: make(map[string][][]byte)}
}

func memKey(ns model.Namespace, recipient string) string {
	return pendingKey("mem", ns, recipient)
}

func (s *MemPendingStore) Enqueue(ctx context.Context, ns model.Namespace, recipient string, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode pending message")
	}
	key := memKey(ns, recipient)
	s.mu.Lock()
	s.queues[key] = append(s.queues[key], b)
	s.mu.Unlock()
	return nil
}

func (s *MemPendingStore) DrainAll(_ context.Context, ns model.Namespace, recipient string, deliver DeliverFunc) (int, error) {
	key := memKey(ns, recipient)
	delivered := 0
	for {
		s.mu.Lock()
		items := s.queues[key]
		if len(items) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return delivered, nil
		}
		head := items[0]
		s.queues[key] = items[1:]
		s.mu.Unlock()

		var msg model.Message
		if err := json.Unmarshal(head, &msg); err != nil {
			continue
		}
		if deliver(msg) {
			delivered++
			continue
		}

		s.mu.Lock()
		s.queues[key] = append([][]byte{head}, s.queues[key]...)
		s.mu.Unlock()
		return delivered, nil
	}
}

func (s *MemPendingStore) Length(_ context.Context, ns model.Namespace, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queues[memKey(ns, recipient)])), nil
}

func (s *MemPendingStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
