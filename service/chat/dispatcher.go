package chat

import (
	"context"
	"sort"

	"PPRelay/logger"
	"PPRelay/module/chat/model"
)

// Handler serves one kind of session (/ws/chat or /ws/signaling).
type Handler interface {
	Kind() model.Namespace
	Registry() *ConnManager
	// OnAttach runs after the session is registered and before any frame is read.
	OnAttach(ctx context.Context, user string) error
	// Handle processes one inbound frame; replies go to conn.
	Handle(ctx context.Context, user string, conn Connection, raw []byte)
}

type Dispatcher struct {
	handlers map[model.Namespace]Handler
	order    []model.Namespace
}

func NewDispatcher(hs ...Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[model.Namespace]Handler)}
	for _, h := range hs {
		d.Register(h)
	}
	return d
}

func (d *Dispatcher) Register(h Handler) {
	if _, ok := d.handlers[h.Kind()]; !ok {
		d.order = append(d.order, h.Kind())
	}
	d.handlers[h.Kind()] = h
}

func (d *Dispatcher) GetHandler(kind model.Namespace) Handler {
	h, ok := d.handlers[kind]
	if !ok {
		logger.Infof("no handler for kind=%v", kind)
		return nil
	}
	return h
}

// Online is the presence view: users reachable on any session kind.
func (d *Dispatcher) Online() []string {
	set := make(map[string]struct{})
	for _, k := range d.order {
		for _, u := range d.handlers[k].Registry().ListReachable() {
			set[u] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Touch pre-creates a placeholder in every registry (login before connect).
func (d *Dispatcher) Touch(user string) {
	for _, k := range d.order {
		d.handlers[k].Registry().Register(user)
	}
}

func (d *Dispatcher) Close() {
	for _, k := range d.order {
		d.handlers[k].Registry().Close()
	}
}
