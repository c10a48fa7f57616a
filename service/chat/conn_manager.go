package chat

import (
	"sort"
	"sync"
	"time"

	"PPRelay/logger"

	"go.uber.org/zap"
)

// ===== config =====

type ManagerConf struct {
	Name       string           // "chat" / "signal", only used in logs and metrics
	EvictAfter time.Duration    // how long an unreachable identity is remembered (e.g. 24h)
	SweepEvery time.Duration    // sweeper period (e.g. 1m)
	Clock      func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.EvictAfter <= 0 {
		c.EvictAfter = 24 * time.Hour
	}
	if c.Name == "" {
		c.Name = "chat"
	}
}

// ===== data =====

// entry is either Reachable (conn != nil) or Unreachable (conn == nil, since set).
// mu guards conn for the whole duration of a write, so a detach can never
// interleave with a send that already observed the connection.
type entry struct {
	mu      sync.Mutex
	conn    Connection
	since   time.Time // last transition to unreachable
	evicted bool
}

// ConnManager is the connection registry: identity -> at most one live Connection.
// A missing key and an Unreachable entry read the same to every caller.
type ConnManager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	conf     ManagerConf
	log      *zap.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(conf ManagerConf) *ConnManager {
	conf.norm()
	m := &ConnManager{
		entries: make(map[string]*entry),
		conf:    conf,
		log:     logger.Named("registry." + conf.Name),
		stopCh:  make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) Name() string { return m.conf.Name }

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// getOrCreate returns the entry for user, creating an Unreachable one if needed.
func (m *ConnManager) getOrCreate(user string) *entry {
	m.mu.RLock()
	e, ok := m.entries[user]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.entries[user]; ok {
		return e
	}
	e = &entry{since: m.conf.Clock()}
	m.entries[user] = e
	return e
}

func (m *ConnManager) get(user string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[user]
}

// Register creates an Unreachable placeholder for user (login before the socket
// arrives). An existing entry is left untouched.
func (m *ConnManager) Register(user string) {
	if user == "" {
		return
	}
	m.getOrCreate(user)
}

// Attach makes conn the live connection of user, replacing (not closing) any
// previous one. Last write wins.
func (m *ConnManager) Attach(user string, conn Connection) {
	if user == "" || conn == nil {
		return
	}
	for {
		e := m.getOrCreate(user)
		e.mu.Lock()
		if e.evicted {
			// the sweeper removed this entry after we looked it up; take a fresh one
			e.mu.Unlock()
			continue
		}
		old := e.conn
		e.conn = conn
		e.mu.Unlock()
		if old != nil && old.ID() != conn.ID() {
			m.log.Info("connection replaced", zap.String("user", user),
				zap.String("old", old.ID()), zap.String("new", conn.ID()))
		}
		return
	}
}

// Detach marks user unreachable. The key is kept.
func (m *ConnManager) Detach(user string) {
	e := m.get(user)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.conn = nil
	e.since = m.conf.Clock()
	e.mu.Unlock()
}

// Release detaches user only if conn is still the registered connection, so a
// late-closing old session cannot knock out a newer one. Reports whether it did.
func (m *ConnManager) Release(user string, conn Connection) bool {
	e := m.get(user)
	if e == nil || conn == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil || e.conn.ID() != conn.ID() {
		return false
	}
	e.conn = nil
	e.since = m.conf.Clock()
	return true
}

func (m *ConnManager) IsReachable(user string) bool {
	e := m.get(user)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// Send writes v to user's connection under the per-identity lock. A write error
// means the socket is dead: the identity is detached and Send reports false.
func (m *ConnManager) Send(user string, v any) bool {
	e := m.get(user)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return false
	}
	if err := e.conn.Send(v); err != nil {
		m.log.Info("send failed, marking unreachable",
			zap.String("user", user), zap.String("conn", e.conn.ID()), zap.Error(err))
		e.conn = nil
		e.since = m.conf.Clock()
		return false
	}
	return true
}

// ListReachable returns a sorted snapshot of reachable identities.
func (m *ConnManager) ListReachable() []string {
	m.mu.RLock()
	users := make([]string, 0, len(m.entries))
	es := make([]*entry, 0, len(m.entries))
	for u, e := range m.entries {
		users = append(users, u)
		es = append(es, e)
	}
	m.mu.RUnlock()

	out := make([]string, 0, len(users))
	for i, e := range es {
		e.mu.Lock()
		if e.conn != nil {
			out = append(out, users[i])
		}
		e.mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// Len is the number of tracked identities, reachable or not.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ===== sweeper =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.SweepOnce(m.conf.Clock())
		}
	}
}

// SweepOnce forgets identities that have been unreachable for longer than
// EvictAfter. Reachable entries are never touched.
func (m *ConnManager) SweepOnce(now time.Time) int {
	n := 0
	m.mu.Lock()
	for user, e := range m.entries {
		// TryLock: an entry busy with a send is in use, skip it this round
		if !e.mu.TryLock() {
			continue
		}
		if e.conn == nil && now.Sub(e.since) > m.conf.EvictAfter {
			e.evicted = true
			delete(m.entries, user)
			n++
		}
		e.mu.Unlock()
	}
	m.mu.Unlock()
	if n > 0 {
		m.log.Debug("evicted stale identities", zap.Int("count", n))
	}
	return n
}
