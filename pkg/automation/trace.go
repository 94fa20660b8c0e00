package automation

import (
	"time"

	"github.com/urmzd/zigman/pkg/device"
)

const maxTraceEntries = 100

// Trace levels.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// TraceEntry records one decision made during rule evaluation. Every rule
// checked leaves at least one entry so operators can see exactly why a rule
// did or did not fire.
type TraceEntry struct {
	Timestamp  float64           `json:"timestamp"` // unix seconds
	RuleID     string            `json:"rule_id"`
	Level      string            `json:"level"`
	Phase      string            `json:"phase"`
	Result     string            `json:"result"`
	Message    string            `json:"message"`
	SourceIEEE string            `json:"source_ieee,omitempty"`
	TargetIEEE string            `json:"target_ieee,omitempty"`
	Command    string            `json:"command,omitempty"`
	Value      any               `json:"command_value,omitempty"`
	EndpointID uint8             `json:"endpoint_id,omitempty"`
	Conditions []ConditionResult `json:"conditions,omitempty"`
	Detail     map[string]any    `json:"detail,omitempty"`
}

// ConditionResult is the per-condition outcome embedded in trace entries.
type ConditionResult struct {
	Index       int    `json:"index"`
	Attribute   string `json:"attribute"`
	Operator    string `json:"operator"`
	Threshold   any    `json:"threshold"`
	Actual      any    `json:"actual,omitempty"`
	ValueSource string `json:"value_source,omitempty"` // "changed" or "state"
	Result      string `json:"result"`                 // PASS, FAIL, ERROR
	Reason      string `json:"reason,omitempty"`
}

// addTraceLocked appends to the ring, logs at the entry's level and forwards
// a summary to the event broker. Caller must hold e.mu.
func (e *Engine) addTraceLocked(t TraceEntry) {
	t.Timestamp = float64(time.Now().UnixNano()) / 1e9
	e.trace = append(e.trace, t)
	if len(e.trace) > maxTraceEntries {
		e.trace = e.trace[len(e.trace)-maxTraceEntries:]
	}

	evt := e.log.Debug()
	switch t.Level {
	case LevelError:
		evt = e.log.Error()
	case LevelWarning:
		evt = e.log.Warn()
	case LevelInfo:
		evt = e.log.Info()
	}
	evt.Str("rule_id", t.RuleID).Str("phase", t.Phase).Str("result", t.Result).Msg(t.Message)

	if e.events != nil {
		e.events.Emit(device.Event{
			Type: device.EventAutomationTrace,
			IEEE: t.SourceIEEE,
			Data: map[string]any{
				"rule_id":     t.RuleID,
				"level":       t.Level,
				"phase":       t.Phase,
				"result":      t.Result,
				"message":     t.Message,
				"target_ieee": t.TargetIEEE,
				"timestamp":   t.Timestamp,
			},
			Timestamp: time.Now(),
		})
	}
}

func (e *Engine) addTrace(t TraceEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addTraceLocked(t)
}

// Trace returns a copy of the recent trace entries, oldest first.
func (e *Engine) Trace() []TraceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TraceEntry, len(e.trace))
	copy(out, e.trace)
	return out
}
