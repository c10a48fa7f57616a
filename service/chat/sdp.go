package chat

import (
	"encoding/json"
	"strings"

	"PPRelay/module/chat/model"
	"PPRelay/tools/errs"

	"github.com/pion/webrtc/v4"
)

// ValidateSignal checks that offer/answer payloads carry a parseable session
// description and that ice payloads look like an ICE candidate. Anything else
// (hangup, custom app types) passes through untouched.
func ValidateSignal(env model.SignalEnvelope) error {
	switch strings.ToLower(env.Type) {
	case "offer", "answer", "pranswer":
		return validateSDP(env.Type, env.Data)
	case "ice", "candidate", "ice-candidate":
		return validateICE(env.Data)
	}
	return nil
}

func validateSDP(typ string, data json.RawMessage) error {
	var sd webrtc.SessionDescription
	// data is either the browser's RTCSessionDescription or the bare SDP text
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		sd = webrtc.SessionDescription{Type: webrtc.NewSDPType(strings.ToLower(typ)), SDP: text}
	} else if err := json.Unmarshal(data, &sd); err != nil {
		return errs.ErrInvalidSignal.Wrap(err)
	}
	if sd.SDP == "" {
		return errs.ErrInvalidSignal.WithDetail("empty sdp")
	}
	if _, err := sd.Unmarshal(); err != nil {
		return errs.ErrInvalidSignal.Wrap(err)
	}
	return nil
}

func validateICE(data json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &c); err != nil {
		return errs.ErrInvalidSignal.Wrap(err)
	}
	// an empty candidate is the end-of-candidates marker
	if c.Candidate != "" && !strings.HasPrefix(strings.TrimPrefix(c.Candidate, "a="), "candidate:") {
		return errs.ErrInvalidSignal.WithDetail("candidate must start with \"candidate:\"")
	}
	return nil
}
