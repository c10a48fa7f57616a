package chat

import (
	"errors"
	"math/rand"
	"testing"

	"PPRelay/tools/errs"

	"github.com/stretchr/testify/require"
)

func TestParseChatFrame(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"full", `{"message_id":"m1","recipient":"bob","content":"hi","timestamp":1}`, true},
		{"object content", `{"recipient":"bob","content":{"text":"hi"}}`, true},
		{"no timestamp", `{"message_id":"m1","recipient":"bob","content":"hi"}`, true},
		{"bad json", `{"recipient":`, false},
		{"blank recipient", `{"recipient":"  ","content":"hi"}`, false},
		{"null content", `{"recipient":"bob","content":null}`, false},
		{"array frame", `[1,2]`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseChatFrame("alice", []byte(tc.raw))
			if !tc.ok {
				require.ErrorIs(t, err, errs.ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "alice", m.Sender)
			require.Equal(t, "bob", m.Recipient)
			require.NotEmpty(t, m.MessageID)
		})
	}
}

func TestParseChatFrameKeepsTimestampVerbatim(t *testing.T) {
	req := require.New(t)
	m, err := ParseChatFrame("alice", []byte(`{"message_id":"m1","recipient":"bob","content":"hi","timestamp":"yesterday"}`))
	req.NoError(err)
	req.JSONEq(`"yesterday"`, string(m.Timestamp))

	m, err = ParseChatFrame("alice", []byte(`{"message_id":"m1","recipient":"bob","content":"hi","timestamp":null}`))
	req.NoError(err)
	req.Empty(m.Timestamp)
}

func TestBuildErrorFrame(t *testing.T) {
	req := require.New(t)
	ef := BuildErrorFrame("m1", errs.ErrMalformedFrame.WithDetail("recipient is required"))
	req.Equal(errs.CodeMalformedFrame, ef.Error.Code)
	req.Equal("recipient is required", ef.Error.Detail)
	req.Equal("m1", ef.MessageID)

	ef = BuildErrorFrame("", errors.New("boom"))
	req.Equal(errs.ServerInternalError, ef.Error.Code)
	req.Equal("boom", ef.Error.Detail)
}

func TestLossPolicy(t *testing.T) {
	req := require.New(t)

	never := NewLossPolicy(0)
	always := NewLossPolicy(1)
	for i := 0; i < 100; i++ {
		req.False(never.Drop())
		req.True(always.Drop())
	}

	l := NewLossPolicy(-3)
	req.Zero(l.Probability())
	l.Set(7)
	req.Equal(1.0, l.Probability())

	half := NewLossPolicyWithSource(0.5, rand.NewSource(42))
	drops := 0
	for i := 0; i < 10000; i++ {
		if half.Drop() {
			drops++
		}
	}
	req.InDelta(5000, drops, 300)
}

func TestKeyLockForgetsIdleKeys(t *testing.T) {
	req := require.New(t)
	k := newKeyLock()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	req.Equal(2, k.size())
	unlockA()
	unlockB()
	req.Zero(k.size())
}
