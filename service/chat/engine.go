package chat

import (
	"context"
	"sync/atomic"
	"time"

	"PPRelay/logger"
	"PPRelay/module/chat/model"
	"PPRelay/service/metrics"
	"PPRelay/service/storage"
	"PPRelay/tools/safe"

	"go.uber.org/zap"
)

type EngineConf struct {
	// EnqueueOnUnreachable parks a message whose direct send failed instead of
	// acking it as dropped.
	EnqueueOnUnreachable bool
	Clock                func() time.Time
}

// Engine is the chat delivery engine: direct delivery to reachable users,
// pending queue for everybody else, replay on attach.
type Engine struct {
	reg     *ConnManager
	store   storage.PendingStore
	idem    storage.IdemStore // nil disables dedup
	loss    *LossPolicy
	metrics *metrics.Metrics

	enqueueOnUnreachable atomic.Bool
	drains               *keyLock
	clock                func() time.Time
	log                  *zap.Logger
}

func NewEngine(reg *ConnManager, store storage.PendingStore, idem storage.IdemStore,
	loss *LossPolicy, m *metrics.Metrics, conf EngineConf) *Engine {
	safe.MustNotNil(reg, "registry")
	safe.MustNotNil(store, "pending store")
	if loss == nil {
		loss = NewLossPolicy(0)
	}
	if conf.Clock == nil {
		conf.Clock = time.Now
	}
	e := &Engine{
		reg:     reg,
		store:   store,
		idem:    idem,
		loss:    loss,
		metrics: m,
		drains:  newKeyLock(),
		clock:   conf.Clock,
		log:     logger.Named("engine"),
	}
	e.enqueueOnUnreachable.Store(conf.EnqueueOnUnreachable)
	return e
}

func (e *Engine) Kind() model.Namespace          { return model.NamespaceChat }
func (e *Engine) Registry() *ConnManager         { return e.reg }
func (e *Engine) Loss() *LossPolicy              { return e.loss }
func (e *Engine) SetEnqueueOnUnreachable(v bool) { e.enqueueOnUnreachable.Store(v) }

// OnAttach replays the user's chat queue before the session reads anything.
func (e *Engine) OnAttach(ctx context.Context, user string) error {
	n, err := e.Replay(ctx, user)
	if n > 0 {
		e.log.Info("replayed pending messages", zap.String("user", user), zap.Int("count", n))
	}
	return err
}

// Replay drains recipient's chat queue onto its live connection. Drained
// deliveries are not acked to their senders.
func (e *Engine) Replay(ctx context.Context, recipient string) (int, error) {
	unlock := e.drains.Lock(recipient)
	defer unlock()
	return e.replayLocked(ctx, recipient)
}

func (e *Engine) replayLocked(ctx context.Context, recipient string) (int, error) {
	n, err := e.store.DrainAll(ctx, model.NamespaceChat, recipient, func(m model.Message) bool {
		return e.reg.Send(recipient, m.Delivery())
	})
	e.metrics.Drained(string(model.NamespaceChat), n)
	if err != nil {
		e.metrics.StoreError("drain")
		e.log.Warn("drain failed", zap.String("recipient", recipient), zap.Int("delivered", n), zap.Error(err))
	}
	return n, err
}

// Handle processes one raw frame from sender and writes the reply, if any, to conn.
func (e *Engine) Handle(ctx context.Context, sender string, conn Connection, raw []byte) {
	msg, err := ParseChatFrame(sender, raw)
	if err != nil {
		e.metrics.Frame(string(model.NamespaceChat), "malformed")
		e.log.Debug("malformed chat frame", zap.String("sender", sender), zap.Error(err))
		e.reply(conn, BuildErrorFrame(msg.MessageID, err))
		return
	}
	if out := e.Process(ctx, msg); out != nil {
		e.reply(conn, out)
	}
}

// Process runs the delivery protocol for one parsed message and returns what
// goes back to the sender: a model.Ack, a model.ErrorFrame, or nil when the
// simulated loss swallowed the message.
func (e *Engine) Process(ctx context.Context, msg model.Message) any {
	msg.StampNow(e.clock())
	key := storage.IdemKey(msg.Sender, msg.MessageID)

	if e.idem != nil {
		seen, err := e.idem.Seen(ctx, key)
		if err != nil {
			// lookup failure: process it anyway
			e.log.Warn("idem lookup failed", zap.String("key", key), zap.Error(err))
		} else if seen {
			e.metrics.Frame(string(model.NamespaceChat), model.AckDuplicate)
			return BuildAck(msg.MessageID, model.AckDuplicate)
		}
	}

	// drains and direct sends to one recipient never interleave
	unlock := e.drains.Lock(msg.Recipient)
	defer unlock()

	if e.loss.Drop() {
		if err := e.enqueue(ctx, msg); err != nil {
			return BuildErrorFrame(msg.MessageID, err)
		}
		e.mark(ctx, key)
		e.metrics.Frame(string(model.NamespaceChat), "lost")
		e.log.Debug("simulated loss, message parked",
			zap.String("id", msg.MessageID), zap.String("recipient", msg.Recipient))
		return nil
	}

	status := e.deliverLocked(ctx, msg)
	switch status {
	case model.AckDelivered:
	case model.AckDropped:
		e.metrics.Frame(string(model.NamespaceChat), model.AckDropped)
		return BuildAck(msg.MessageID, model.AckDropped)
	default:
		if err := e.enqueue(ctx, msg); err != nil {
			return BuildErrorFrame(msg.MessageID, err)
		}
	}
	e.mark(ctx, key)
	e.metrics.Frame(string(model.NamespaceChat), status)
	return BuildAck(msg.MessageID, status)
}

// deliverLocked tries a direct send and reports delivered, queued (caller must
// enqueue) or dropped.
func (e *Engine) deliverLocked(ctx context.Context, msg model.Message) string {
	if e.reg.IsReachable(msg.Recipient) {
		// parked messages go first; if the drain fails the new one queues behind them
		if _, err := e.replayLocked(ctx, msg.Recipient); err == nil {
			if e.reg.Send(msg.Recipient, msg.Delivery()) {
				return model.AckDelivered
			}
		}
	}
	if e.enqueueOnUnreachable.Load() {
		return model.AckQueued
	}
	return model.AckDropped
}

func (e *Engine) enqueue(ctx context.Context, msg model.Message) error {
	if err := e.store.Enqueue(ctx, model.NamespaceChat, msg.Recipient, msg); err != nil {
		e.metrics.StoreError("enqueue")
		e.log.Error("enqueue failed",
			zap.String("id", msg.MessageID), zap.String("recipient", msg.Recipient), zap.Error(err))
		return err
	}
	e.metrics.Enqueued(string(model.NamespaceChat))
	return nil
}

func (e *Engine) mark(ctx context.Context, key string) {
	if e.idem == nil {
		return
	}
	if err := e.idem.Mark(ctx, key); err != nil {
		e.log.Warn("idem mark failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Engine) reply(conn Connection, v any) {
	if conn == nil {
		return
	}
	if err := conn.Send(v); err != nil {
		e.log.Info("reply not written", zap.String("conn", conn.ID()), zap.Error(err))
	}
}
