package storage

import (
	"context"
	"time"

	"PPRelay/module/chat/model"

	"github.com/cenkalti/backoff/v4"
)

// DeliverFunc reports whether msg reached the recipient. Returning false stops
// a drain and puts msg back at the head of the queue.
type DeliverFunc func(msg model.Message) bool

// PendingStore is the per-recipient FIFO of undelivered messages.
//
// Enqueue must not return nil unless the message is durably stored: callers ack
// upstream on success. DrainAll pops from the head and stops at the first
// failed delivery, restoring that message to the head. Length always reads the
// backing store.
type PendingStore interface {
	Enqueue(ctx context.Context, ns model.Namespace, recipient string, msg model.Message) error
	DrainAll(ctx context.Context, ns model.Namespace, recipient string, deliver DeliverFunc) (int, error)
	Length(ctx context.Context, ns model.Namespace, recipient string) (int64, error)
}

// RetryPolicy bounds how long a store operation is retried before it is
// reported as unavailable.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsed:      5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsed
	if b.MaxElapsedTime <= 0 {
		// zero means "retry forever" to backoff; never allow that here
		b.MaxElapsedTime = DefaultRetryPolicy().MaxElapsed
	}
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func pendingKey(prefix string, ns model.Namespace, recipient string) string {
	return prefix + ":" + string(ns) + ":" + recipient
}

func deadKey(prefix string, ns model.Namespace, recipient string) string {
	return prefix + ":dead:" + string(ns) + ":" + recipient
}
