package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Namespace separates pending queues so chat and signaling never share keys.
type Namespace string

const (
	NamespaceChat   Namespace = "chat"
	NamespaceSignal Namespace = "signal"
)

// Ack statuses. An ack means "the relay processed your message", never "the
// recipient read it".
const (
	AckDelivered = "delivered" // written to the recipient's socket
	AckQueued    = "queued"    // parked in the recipient's pending queue
	AckDropped   = "dropped"   // recipient unreachable and queueing disabled
	AckDuplicate = "duplicate" // message_id already processed inside the dedup window
)

// Message is a chat message as the relay stores it. Content and Timestamp are
// carried verbatim; the relay never interprets them.
type Message struct {
	MessageID string          `json:"message_id"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Content   json.RawMessage `json:"content"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// StampNow fills an absent timestamp with server time in unix milliseconds.
func (m *Message) StampNow(now time.Time) {
	if len(m.Timestamp) == 0 || string(m.Timestamp) == "null" {
		m.Timestamp = json.RawMessage(strconv.FormatInt(now.UnixMilli(), 10))
	}
}

// Delivery is the envelope written to a recipient.
type Delivery struct {
	Message   json.RawMessage `json:"message"`
	Sender    string          `json:"sender"`
	MessageID string          `json:"message_id"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func (m Message) Delivery() Delivery {
	ts := m.Timestamp
	if len(ts) == 0 {
		ts = json.RawMessage("null")
	}
	return Delivery{
		Message:   m.Content,
		Sender:    m.Sender,
		MessageID: m.MessageID,
		Timestamp: ts,
	}
}

// Ack goes back to the sender after the engine processed a message.
type Ack struct {
	Ack    string `json:"ack"`
	Status string `json:"status,omitempty"`
}

// SignalEnvelope is one piece of call-negotiation data between two users.
type SignalEnvelope struct {
	From   string          `json:"from"`
	Target string          `json:"target"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// SignalForward is the shape the target receives.
type SignalForward struct {
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e SignalEnvelope) Forward() SignalForward {
	return SignalForward{From: e.From, Type: e.Type, Data: e.Data}
}

// ErrorFrame reports a per-message failure without closing the session.
type ErrorFrame struct {
	Error     ErrorBody `json:"error"`
	MessageID string    `json:"message_id,omitempty"`
}

type ErrorBody struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}
