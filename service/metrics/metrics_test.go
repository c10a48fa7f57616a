package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	req := require.New(t)
	m := New()

	m.Frame("chat", "delivered")
	m.Frame("chat", "delivered")
	m.Drained("chat", 3)
	m.Drained("chat", 0)
	m.SessionOpened("signaling")
	m.SessionOpened("signaling")
	m.SessionClosed("signaling")

	req.Equal(2.0, testutil.ToFloat64(m.frames.WithLabelValues("chat", "delivered")))
	req.Equal(3.0, testutil.ToFloat64(m.drained.WithLabelValues("chat")))
	req.Equal(1.0, testutil.ToFloat64(m.sessions.WithLabelValues("signaling")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Frame("chat", "lost")
		m.Enqueued("chat")
		m.Drained("chat", 1)
		m.StoreError("drain")
		m.SessionOpened("chat")
		m.SessionClosed("chat")
	})
}

func TestHandlerExposesOwnRegistry(t *testing.T) {
	req := require.New(t)
	m := New()
	m.StoreError("enqueue")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.True(strings.Contains(rec.Body.String(), `pprelay_store_errors_total{op="enqueue"} 1`))
}
