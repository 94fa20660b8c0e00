// Package automation evaluates device state changes against user-defined
// threshold rules and fires direct commands at target devices, bypassing
// MQTT round-trips. Rules persist as a single JSON document and every
// evaluation leaves a trace explaining why it did or did not fire.
package automation

// Limits and defaults for rule management.
const (
	MaxRulesPerSource    = 10
	MaxConditionsPerRule = 5
	DefaultCooldown      = 5.0 // seconds between re-fires of the same rule
	DefaultDataFile      = "./data/automations.json"
)

var validOperators = map[string]bool{
	"eq":  true,
	"neq": true,
	"gt":  true,
	"lt":  true,
	"gte": true,
	"lte": true,
}

// Commands a rule action may dispatch. Matches the engine's normalised
// command set minus identify.
var validCommands = map[string]bool{
	"on":         true,
	"off":        true,
	"toggle":     true,
	"brightness": true,
	"color_temp": true,
	"open":       true,
	"close":      true,
	"stop":       true,
	"position":   true,
}

// Condition is one comparison in a rule's AND set.
type Condition struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// Action is the command fired at the target device when a rule matches.
type Action struct {
	Command    string `json:"command"`
	Value      any    `json:"value,omitempty"`
	EndpointID uint8  `json:"endpoint_id,omitempty"`
}

// Rule binds conditions on a source device to an action on a target device.
// All conditions must hold (AND); evaluation triggers when any watched
// attribute appears in a state delta.
type Rule struct {
	ID         string      `json:"id"`
	Enabled    bool        `json:"enabled"`
	SourceIEEE string      `json:"source_ieee"`
	Conditions []Condition `json:"conditions"`
	TargetIEEE string      `json:"target_ieee"`
	Action     Action      `json:"action"`
	Cooldown   float64     `json:"cooldown"`          // seconds
	Created    float64     `json:"created"`           // unix seconds
	Updated    float64     `json:"updated,omitempty"` // unix seconds
}

func (r *Rule) watchedAttributes() map[string]bool {
	watched := make(map[string]bool, len(r.Conditions))
	for _, c := range r.Conditions {
		watched[c.Attribute] = true
	}
	return watched
}

// RuleView is a rule enriched with friendly names for display.
type RuleView struct {
	Rule
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
}

// CreateRequest is the payload for creating a rule. Conditions may be given
// as a list or as the single attribute/operator/value shorthand.
type CreateRequest struct {
	SourceIEEE   string      `json:"source_ieee"`
	TargetIEEE   string      `json:"target_ieee"`
	Command      string      `json:"command"`
	CommandValue any         `json:"command_value,omitempty"`
	EndpointID   uint8       `json:"endpoint_id,omitempty"`
	Conditions   []Condition `json:"conditions,omitempty"`
	Attribute    string      `json:"attribute,omitempty"`
	Operator     string      `json:"operator,omitempty"`
	Value        any         `json:"value,omitempty"`
	Cooldown     *float64    `json:"cooldown,omitempty"`
	Enabled      *bool       `json:"enabled,omitempty"`
}

// UpdateRequest carries partial rule updates. Zero fields are left untouched;
// Conditions replaces the whole list when present.
type UpdateRequest struct {
	Enabled      *bool       `json:"enabled,omitempty"`
	Conditions   []Condition `json:"conditions,omitempty"`
	TargetIEEE   string      `json:"target_ieee,omitempty"`
	Command      string      `json:"command,omitempty"`
	CommandValue any         `json:"command_value,omitempty"`
	EndpointID   *uint8      `json:"endpoint_id,omitempty"`
	Cooldown     *float64    `json:"cooldown,omitempty"`
}

// AttributeInfo describes one state attribute usable as a rule condition.
type AttributeInfo struct {
	Attribute    string   `json:"attribute"`
	CurrentValue any      `json:"current_value"`
	Type         string   `json:"type"`
	Operators    []string `json:"operators"`
}
