package chat

import (
	"context"
	"sync/atomic"

	"PPRelay/logger"
	"PPRelay/module/chat/model"
	"PPRelay/service/metrics"
	"PPRelay/tools/safe"

	"go.uber.org/zap"
)

// SignalRelay forwards call-negotiation envelopes to online targets only.
// No acks and no queueing.
type SignalRelay struct {
	reg      *ConnManager
	metrics  *metrics.Metrics
	validate atomic.Bool
	log      *zap.Logger
}

func NewSignalRelay(reg *ConnManager, m *metrics.Metrics, validate bool) *SignalRelay {
	safe.MustNotNil(reg, "registry")
	r := &SignalRelay{
		reg:     reg,
		metrics: m,
		log:     logger.Named("signal"),
	}
	r.validate.Store(validate)
	return r
}

func (r *SignalRelay) Kind() model.Namespace  { return model.NamespaceSignal }
func (r *SignalRelay) Registry() *ConnManager { return r.reg }
func (r *SignalRelay) SetValidate(v bool)     { r.validate.Store(v) }

// OnAttach has nothing to flush: envelopes for offline targets are dropped,
// never stored.
func (r *SignalRelay) OnAttach(context.Context, string) error { return nil }

func (r *SignalRelay) Handle(_ context.Context, from string, conn Connection, raw []byte) {
	env, err := ParseSignalFrame(from, raw)
	if err == nil && r.validate.Load() {
		err = ValidateSignal(env)
	}
	if err != nil {
		r.metrics.Frame(string(model.NamespaceSignal), "malformed")
		r.log.Debug("rejected signal frame", zap.String("from", from), zap.Error(err))
		if conn != nil {
			if serr := conn.Send(BuildErrorFrame("", err)); serr != nil {
				r.log.Info("reply not written", zap.String("conn", conn.ID()), zap.Error(serr))
			}
		}
		return
	}
	r.Relay(env)
}

// Relay forwards env if the target is online and reports whether it did.
func (r *SignalRelay) Relay(env model.SignalEnvelope) bool {
	if r.reg.Send(env.Target, env.Forward()) {
		r.metrics.Frame(string(model.NamespaceSignal), "forwarded")
		return true
	}
	r.metrics.Frame(string(model.NamespaceSignal), "dropped")
	r.log.Debug("signal target offline, dropped",
		zap.String("from", env.From), zap.String("target", env.Target), zap.String("type", env.Type))
	return false
}
