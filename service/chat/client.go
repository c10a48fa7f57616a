package chat

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"PPRelay/tools/ids"

	"github.com/gorilla/websocket"
)

var ErrConnClosed = errors.New("connection closed")

// Connection is one live session socket. Send must be safe for concurrent use
// and must fail once the connection is closed.
type Connection interface {
	ID() string
	Send(v any) error
	Close() error
}

// WsConn adapts a gorilla websocket to Connection. gorilla allows a single
// concurrent writer, so every write (payloads, pings, close) goes through mu.
type WsConn struct {
	SnowID    string
	UserId    string
	Remote    net.Addr
	CreatedAt time.Time

	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func NewWsConn(user string, conn *websocket.Conn, writeWait time.Duration) *WsConn {
	if writeWait <= 0 {
		writeWait = 5 * time.Second
	}
	return &WsConn{
		SnowID:    ids.GenerateString(),
		UserId:    user,
		Remote:    conn.RemoteAddr(),
		CreatedAt: time.Now(),
		conn:      conn,
		writeWait: writeWait,
	}
}

func (c *WsConn) ID() string { return c.SnowID }

// Send writes v as one JSON text frame.
func (c *WsConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeWait))
}

// Close sends a normal close frame (best effort) and releases the socket.
func (c *WsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
