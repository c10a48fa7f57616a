package chat

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// LossPolicy simulates transient delivery failure: with probability p a chat
// message skips direct delivery and goes straight to the pending queue.
// The probability can be changed at runtime.
type LossPolicy struct {
	bits atomic.Uint64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLossPolicy(p float64) *LossPolicy {
	return NewLossPolicyWithSource(p, rand.NewSource(time.Now().UnixNano()))
}

// NewLossPolicyWithSource is for tests that need a deterministic sequence.
func NewLossPolicyWithSource(p float64, src rand.Source) *LossPolicy {
	l := &LossPolicy{rnd: rand.New(src)}
	l.Set(p)
	return l
}

// Set clamps p into [0,1].
func (l *LossPolicy) Set(p float64) {
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	l.bits.Store(math.Float64bits(p))
}

func (l *LossPolicy) Probability() float64 {
	return math.Float64frombits(l.bits.Load())
}

// Drop draws once. p=0 never drops and p=1 always drops without touching the rng.
func (l *LossPolicy) Drop() bool {
	p := l.Probability()
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	}
	l.mu.Lock()
	v := l.rnd.Float64()
	l.mu.Unlock()
	return v < p
}
