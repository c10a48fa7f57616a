package config

import (
	"fmt"
	"sync"

	"PPRelay/logger"
	"PPRelay/tools/decode"

	"go.uber.org/zap"
)

// Overrides are the settings that can change while the relay runs. Absent
// keys leave the current value alone.
type Overrides struct {
	LossProbability      *float64 `json:"loss_probability"`
	EnqueueOnUnreachable *bool    `json:"enqueue_on_unreachable"`
	SignalValidateSDP    *bool    `json:"signal_validate_sdp"`
	LogLevel             *string  `json:"log_level"`
}

// ParseOverrides accepts a JSON object or key=value lines.
func ParseOverrides(text string) (*Overrides, error) {
	o, err := decode.DecodeText[Overrides](text)
	if err != nil {
		return nil, err
	}
	if o.LossProbability != nil && (*o.LossProbability < 0 || *o.LossProbability > 1) {
		return nil, fmt.Errorf("loss_probability must be within [0,1], got %v", *o.LossProbability)
	}
	return o, nil
}

// Tunables are the setters a live config change is applied through.
type Tunables struct {
	SetLossProbability      func(float64)
	SetEnqueueOnUnreachable func(bool)
	SetSignalValidateSDP    func(bool)
}

// Apply pushes every present override and returns the keys it applied.
func (o *Overrides) Apply(t Tunables) []string {
	var applied []string
	if o.LossProbability != nil && t.SetLossProbability != nil {
		t.SetLossProbability(*o.LossProbability)
		applied = append(applied, "loss_probability")
	}
	if o.EnqueueOnUnreachable != nil && t.SetEnqueueOnUnreachable != nil {
		t.SetEnqueueOnUnreachable(*o.EnqueueOnUnreachable)
		applied = append(applied, "enqueue_on_unreachable")
	}
	if o.SignalValidateSDP != nil && t.SetSignalValidateSDP != nil {
		t.SetSignalValidateSDP(*o.SignalValidateSDP)
		applied = append(applied, "signal_validate_sdp")
	}
	if o.LogLevel != nil {
		if err := logger.SetLevel(*o.LogLevel); err == nil {
			applied = append(applied, "log_level")
		}
	}
	return applied
}

// OverrideSource pushes raw config text whenever it changes.
type OverrideSource interface {
	Watch(onChange func(content string)) error
}

// LiveConfig remembers the last good override text and applies new ones.
type LiveConfig struct {
	mu      sync.Mutex
	current string
	t       Tunables
}

func NewLiveConfig(t Tunables) *LiveConfig {
	return &LiveConfig{t: t}
}

// Update parses and applies content. A bad payload is logged and ignored; the
// previous values stay in effect.
func (l *LiveConfig) Update(content string) error {
	o, err := ParseOverrides(content)
	if err != nil {
		logger.Warn("ignoring live config", zap.Error(err))
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	applied := o.Apply(l.t)
	l.current = content
	logger.Info("live config applied", zap.Strings("keys", applied))
	return nil
}

func (l *LiveConfig) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch subscribes l to src.
func (l *LiveConfig) Watch(src OverrideSource) error {
	return src.Watch(func(content string) { _ = l.Update(content) })
}
