package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"PPRelay/module/chat/model"
	"PPRelay/service/metrics"
	"PPRelay/service/storage"
	"PPRelay/tools/errs"
)

var connSeq atomic.Int64

// fakeConn records every frame written to it as JSON. failAfter < 0 never fails.
type fakeConn struct {
	id        string
	mu        sync.Mutex
	frames    [][]byte
	failAfter int
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("fake-%d", connSeq.Add(1)), failAfter: -1}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.failAfter == 0 {
		return ErrConnClosed
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) raw() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeConn) deliveries(t *testing.T) []model.Delivery {
	t.Helper()
	var out []model.Delivery
	for _, b := range f.raw() {
		var d model.Delivery
		if err := json.Unmarshal(b, &d); err != nil {
			t.Fatalf("decode delivery %s: %v", b, err)
		}
		out = append(out, d)
	}
	return out
}

func (f *fakeConn) acks(t *testing.T) []model.Ack {
	t.Helper()
	var out []model.Ack
	for _, b := range f.raw() {
		var a model.Ack
		if err := json.Unmarshal(b, &a); err != nil {
			t.Fatalf("decode ack %s: %v", b, err)
		}
		out = append(out, a)
	}
	return out
}

func (f *fakeConn) errorFrames(t *testing.T) []model.ErrorFrame {
	t.Helper()
	var out []model.ErrorFrame
	for _, b := range f.raw() {
		var e model.ErrorFrame
		if err := json.Unmarshal(b, &e); err != nil {
			t.Fatalf("decode error frame %s: %v", b, err)
		}
		if e.Error.Code != 0 {
			out = append(out, e)
		}
	}
	return out
}

// brokenStore fails every operation the way the redis store does after retries.
type brokenStore struct{}

var errDown = errs.ErrStoreUnavailable.Wrap(errors.New("connection refused"))

func (brokenStore) Enqueue(context.Context, model.Namespace, string, model.Message) error {
	return errDown
}

func (brokenStore) DrainAll(context.Context, model.Namespace, string, storage.DeliverFunc) (int, error) {
	return 0, errDown
}

func (brokenStore) Length(context.Context, model.Namespace, string) (int64, error) {
	return 0, errDown
}

func newRegistry(t *testing.T, name string) *ConnManager {
	t.Helper()
	m := NewConnManager(ManagerConf{Name: name})
	t.Cleanup(m.Close)
	return m
}

// frameCount reads one pprelay_frames_total series back from the registry.
func frameCount(m *metrics.Metrics, kind, result string) float64 {
	mfs, err := m.Registry.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range mfs {
		if mf.GetName() != "pprelay_frames_total" {
			continue
		}
		for _, s := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range s.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["kind"] == kind && labels["result"] == result {
				return s.GetCounter().GetValue()
			}
		}
	}
	return 0
}
