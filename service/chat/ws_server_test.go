package chat

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PPRelay/module/chat/model"
	"PPRelay/service/metrics"
	"PPRelay/service/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	srv     *Server
	http    *httptest.Server
	engine  *Engine
	chatReg *ConnManager
	sigReg  *ConnManager
	store   *storage.MemPendingStore
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	f := &wsFixture{
		chatReg: newRegistry(t, "chat"),
		sigReg:  newRegistry(t, "signal"),
		store:   storage.NewMemPendingStore(),
	}
	f.engine = NewEngine(f.chatReg, f.store, storage.NewMemIdem(100, time.Minute), NewLossPolicy(0), m,
		EngineConf{EnqueueOnUnreachable: true})
	relay := NewSignalRelay(f.sigReg, m, false)
	f.srv = NewServer(NewDispatcher(f.engine, relay), m, ServerConf{PingEvery: time.Second})

	r := gin.New()
	r.GET("/ws/chat/:username", f.srv.HandleChatWS)
	r.GET("/ws/signaling/:username", f.srv.HandleSignalingWS)
	f.http = httptest.NewServer(r)
	t.Cleanup(func() {
		f.srv.Shutdown()
		f.http.Close()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readJSON(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func TestWebSocketChatQueueAndReplay(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)

	alice := f.dial(t, "/ws/chat/alice")
	req.NoError(alice.WriteJSON(map[string]any{"message_id": "m1", "recipient": "bob", "content": "hi bob"}))
	var ack model.Ack
	readJSON(t, alice, &ack)
	req.Equal(model.Ack{Ack: "m1", Status: model.AckQueued}, ack)

	bob := f.dial(t, "/ws/chat/bob")
	var d model.Delivery
	readJSON(t, bob, &d)
	req.Equal("m1", d.MessageID)
	req.Equal("alice", d.Sender)
	req.JSONEq(`"hi bob"`, string(d.Message))

	req.NoError(alice.WriteJSON(map[string]any{"message_id": "m2", "recipient": "bob", "content": "live"}))
	readJSON(t, alice, &ack)
	req.Equal(model.Ack{Ack: "m2", Status: model.AckDelivered}, ack)
	readJSON(t, bob, &d)
	req.Equal("m2", d.MessageID)
}

func TestWebSocketMalformedFrameKeepsSession(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	alice := f.dial(t, "/ws/chat/alice")

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	var ef model.ErrorFrame
	readJSON(t, alice, &ef)
	req.Equal(1001, ef.Error.Code)

	req.NoError(alice.WriteJSON(map[string]any{"message_id": "m1", "recipient": "bob", "content": "x"}))
	var ack model.Ack
	readJSON(t, alice, &ack)
	req.Equal("m1", ack.Ack)
}

func TestWebSocketCloseMarksUnreachable(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	bob := f.dial(t, "/ws/chat/bob")
	req.Eventually(func() bool { return f.chatReg.IsReachable("bob") }, 2*time.Second, 10*time.Millisecond)

	req.NoError(bob.Close())
	req.Eventually(func() bool { return !f.chatReg.IsReachable("bob") }, 2*time.Second, 10*time.Millisecond)
	req.Equal(1, f.chatReg.Len())
}

func TestWebSocketSignalingForward(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	alice := f.dial(t, "/ws/signaling/alice")
	bob := f.dial(t, "/ws/signaling/bob")
	req.Eventually(func() bool { return f.sigReg.IsReachable("bob") }, 2*time.Second, 10*time.Millisecond)

	// a chat socket of the same user is a separate registry entry
	req.False(f.chatReg.IsReachable("bob"))

	req.NoError(alice.WriteJSON(map[string]any{
		"target": "bob", "type": "ice", "data": map[string]any{"candidate": "", "sdpMid": "0"},
	}))
	var fwd model.SignalForward
	readJSON(t, bob, &fwd)
	req.Equal("alice", fwd.From)
	req.Equal("ice", fwd.Type)
	req.JSONEq(`{"candidate":"","sdpMid":"0"}`, string(fwd.Data))
}
