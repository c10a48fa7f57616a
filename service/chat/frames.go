package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"PPRelay/module/chat/model"
	"PPRelay/tools/errs"

	"github.com/google/uuid"
)

// chatFrame is what a sender writes on /ws/chat. sender is ignored: the session
// identity always wins.
type chatFrame struct {
	MessageID string          `json:"message_id"`
	Recipient string          `json:"recipient"`
	Content   json.RawMessage `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseChatFrame decodes one inbound chat frame into a Message owned by sender.
// A missing message_id is filled with a fresh UUID.
func ParseChatFrame(sender string, raw []byte) (model.Message, error) {
	var f chatFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Message{}, errs.ErrMalformedFrame.Wrap(err)
	}
	f.Recipient = strings.TrimSpace(f.Recipient)
	if f.Recipient == "" {
		return model.Message{MessageID: f.MessageID}, errs.ErrMalformedFrame.WithDetail("recipient is required")
	}
	if isAbsent(f.Content) {
		return model.Message{MessageID: f.MessageID}, errs.ErrMalformedFrame.WithDetail("content is required")
	}
	if f.MessageID == "" {
		f.MessageID = uuid.NewString()
	}
	ts := f.Timestamp
	if isAbsent(ts) {
		ts = nil
	}
	return model.Message{
		MessageID: f.MessageID,
		Sender:    sender,
		Recipient: f.Recipient,
		Content:   f.Content,
		Timestamp: ts,
	}, nil
}

type signalFrame struct {
	Target string          `json:"target"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// ParseSignalFrame decodes {target, type, data}; all three are required.
func ParseSignalFrame(from string, raw []byte) (model.SignalEnvelope, error) {
	var f signalFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.SignalEnvelope{}, errs.ErrMalformedFrame.Wrap(err)
	}
	switch {
	case strings.TrimSpace(f.Target) == "":
		return model.SignalEnvelope{}, errs.ErrMalformedFrame.WithDetail("target is required")
	case f.Type == "":
		return model.SignalEnvelope{}, errs.ErrMalformedFrame.WithDetail("type is required")
	case isAbsent(f.Data):
		return model.SignalEnvelope{}, errs.ErrMalformedFrame.WithDetail("data is required")
	}
	return model.SignalEnvelope{
		From:   from,
		Target: strings.TrimSpace(f.Target),
		Type:   f.Type,
		Data:   f.Data,
	}, nil
}

// BuildAck acknowledges processing of messageID.
func BuildAck(messageID, status string) model.Ack {
	return model.Ack{Ack: messageID, Status: status}
}

// BuildErrorFrame turns err into the error frame sent back on the socket.
func BuildErrorFrame(messageID string, err error) model.ErrorFrame {
	ce := errs.AsCode(err)
	return model.ErrorFrame{
		Error:     model.ErrorBody{Code: ce.Code, Msg: ce.Msg, Detail: ce.Detail},
		MessageID: messageID,
	}
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
