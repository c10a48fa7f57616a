package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"PPRelay/logger"
	"PPRelay/module/chat/model"
	"PPRelay/service/metrics"
	"PPRelay/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ---- defaults ----
const (
	defaultPingEvery = 25 * time.Second
	defaultPongWait  = 60 * time.Second
	defaultWriteWait = 10 * time.Second
	defaultReadLimit = 64 << 10
)

type ServerConf struct {
	PingEvery   time.Duration
	PongWait    time.Duration
	WriteWait   time.Duration
	ReadLimit   int64
	CheckOrigin func(r *http.Request) bool // nil accepts every origin
}

func (c *ServerConf) norm() {
	if c.PingEvery <= 0 {
		c.PingEvery = defaultPingEvery
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PongWait <= c.PingEvery {
		c.PongWait = 2 * c.PingEvery
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// Server upgrades /ws/chat/:username and /ws/signaling/:username and runs one
// read loop per session.
type Server struct {
	disp     *Dispatcher
	conf     ServerConf
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[*WsConn]struct{}
	closing  bool
}

func NewServer(disp *Dispatcher, m *metrics.Metrics, conf ServerConf) *Server {
	conf.norm()
	return &Server{
		disp:    disp,
		conf:    conf,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     conf.CheckOrigin,
		},
		log:      logger.Named("ws"),
		sessions: make(map[*WsConn]struct{}),
	}
}

func (s *Server) HandleChatWS(c *gin.Context)      { s.serve(c, model.NamespaceChat) }
func (s *Server) HandleSignalingWS(c *gin.Context) { s.serve(c, model.NamespaceSignal) }

func (s *Server) serve(c *gin.Context, kind model.Namespace) {
	user := strings.TrimSpace(c.Param("username"))
	if user == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "username is required"})
		return
	}
	h := s.disp.GetHandler(kind)
	if h == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the http error
		s.log.Info("upgrade failed", zap.String("user", user), zap.Error(err))
		return
	}
	conn := NewWsConn(user, ws, s.conf.WriteWait)
	if !s.track(conn) {
		_ = conn.Close()
		return
	}

	ws.SetReadLimit(s.conf.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	reg := h.Registry()
	reg.Attach(user, conn)
	s.metrics.SessionOpened(string(kind))
	log := s.log.With(zap.String("kind", string(kind)), zap.String("user", user), zap.String("conn", conn.ID()))
	log.Info("session opened", zap.Stringer("remote", conn.Remote))

	defer func() {
		cancel()
		released := reg.Release(user, conn)
		_ = conn.Close()
		s.untrack(conn)
		s.metrics.SessionClosed(string(kind))
		log.Info("session closed", zap.Bool("released", released))
	}()
	defer safe.Recover("session." + string(kind))

	safe.Go("keepalive", func() { s.keepalive(ctx, conn) })

	if err := h.OnAttach(ctx, user); err != nil {
		// the queue is still intact; the next attach or message retries it
		log.Warn("replay on attach failed", zap.Error(err))
	}

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("read loop ended", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		h.Handle(ctx, user, conn, data)
	}
}

func (s *Server) keepalive(ctx context.Context, conn *WsConn) {
	t := time.NewTicker(s.conf.PingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.Ping(); err != nil {
				// the read loop notices the dead socket through its deadline
				return
			}
		}
	}
}

func (s *Server) track(c *WsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *WsConn) {
	s.mu.Lock()
	delete(s.sessions, c)
	s.mu.Unlock()
}

// Shutdown closes every open session; hijacked sockets are not covered by
// http.Server.Shutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	conns := make([]*WsConn, 0, len(s.sessions))
	for c := range s.sessions {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	s.log.Info("sessions closed", zap.Int("count", len(conns)))
}
