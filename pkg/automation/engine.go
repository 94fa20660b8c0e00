package automation

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
)

// DeviceDirectory is the slice of the device engine the automation engine
// consumes: snapshot lookups and normalised command dispatch.
type DeviceDirectory interface {
	Device(ieee string) (device.Device, bool)
	SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult
}

type counters struct {
	evaluations        uint64
	matches            uint64
	executions         uint64
	executionSuccesses uint64
	executionFailures  uint64
	errors             uint64
}

// Stats is a snapshot of the engine counters plus rule totals.
type Stats struct {
	Evaluations        uint64 `json:"evaluations"`
	Matches            uint64 `json:"matches"`
	Executions         uint64 `json:"executions"`
	ExecutionSuccesses uint64 `json:"execution_successes"`
	ExecutionFailures  uint64 `json:"execution_failures"`
	Errors             uint64 `json:"errors"`
	TotalRules         int    `json:"total_rules"`
	EnabledRules       int    `json:"enabled_rules"`
	TraceEntries       int    `json:"trace_entries"`
}

// Engine owns the rule set, its persistence and the evaluation loop. It
// implements device.DeltaConsumer so the device engine feeds it coalesced
// state deltas.
type Engine struct {
	devices DeviceDirectory
	events  *device.Broker
	log     zerolog.Logger
	path    string

	mu        sync.Mutex
	rules     []*Rule
	sourceIdx map[string][]string
	cooldowns map[string]time.Time
	trace     []TraceEntry
	stats     counters
}

// NewEngine loads persisted rules and binds the engine to the device
// directory. A corrupt rule file starts the engine empty rather than
// failing boot; migrated legacy files are rewritten immediately.
func NewEngine(path string, devices DeviceDirectory, events *device.Broker, log zerolog.Logger) *Engine {
	e := &Engine{
		devices:   devices,
		events:    events,
		log:       log.With().Str("component", "automation").Logger(),
		path:      path,
		sourceIdx: make(map[string][]string),
		cooldowns: make(map[string]time.Time),
	}

	rules, migrated, err := loadRules(path)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to load automation rules, starting empty")
	}
	e.rules = rules
	e.rebuildIndexLocked()
	if migrated {
		if err := saveRules(path, e.rules); err != nil {
			e.log.Warn().Err(err).Msg("failed to rewrite migrated rules")
		} else {
			e.log.Info().Msg("migrated legacy threshold rules to conditions format")
		}
	}
	e.log.Info().Int("rules", len(e.rules)).Msg("automation engine initialised")
	return e
}

// DeviceStateChanged implements device.DeltaConsumer.
func (e *Engine) DeviceStateChanged(ieee string, delta map[string]any) {
	e.Evaluate(ieee, delta)
}

// Evaluate runs every rule watching the source device against the changed
// attributes. All conditions of a rule must pass (AND); attributes absent
// from the delta are resolved from the device's full state.
func (e *Engine) Evaluate(sourceIEEE string, changed map[string]any) {
	e.mu.Lock()
	indexed := e.sourceIdx[sourceIEEE]
	if len(indexed) == 0 {
		e.mu.Unlock()
		return
	}
	ids := make([]string, len(indexed))
	copy(ids, indexed)
	e.stats.evaluations++
	e.mu.Unlock()

	now := time.Now()

	source, ok := e.devices.Device(sourceIEEE)
	if !ok {
		e.addTrace(TraceEntry{
			RuleID:     "-",
			Level:      LevelError,
			Phase:      "lookup",
			Result:     "SOURCE_MISSING",
			Message:    fmt.Sprintf("source device %s not in registry", sourceIEEE),
			SourceIEEE: sourceIEEE,
		})
		return
	}

	changedKeys := sortedKeys(changed)
	e.addTrace(TraceEntry{
		RuleID:     "-",
		Level:      LevelDebug,
		Phase:      "entry",
		Result:     "EVALUATING",
		Message:    fmt.Sprintf("state change on %s: %v, checking %d rule(s)", source.Name(), changedKeys, len(ids)),
		SourceIEEE: sourceIEEE,
		Detail:     map[string]any{"changed_keys": changedKeys},
	})

	for _, id := range ids {
		e.evaluateRule(id, sourceIEEE, source.Name(), changed, source.State, now)
	}
}

func (e *Engine) evaluateRule(ruleID, sourceIEEE, sourceName string, changed, fullState map[string]any, now time.Time) {
	e.mu.Lock()
	stored := e.findRuleLocked(ruleID)
	if stored == nil {
		e.addTraceLocked(TraceEntry{
			RuleID:     ruleID,
			Level:      LevelWarning,
			Phase:      "lookup",
			Result:     "RULE_MISSING",
			Message:    "rule indexed but not present in rule set",
			SourceIEEE: sourceIEEE,
		})
		e.mu.Unlock()
		return
	}
	r := *stored
	e.mu.Unlock()

	if !r.Enabled {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelDebug,
			Phase:      "enabled",
			Result:     "DISABLED",
			Message:    "rule is disabled, skipping",
			SourceIEEE: sourceIEEE,
		})
		return
	}
	if len(r.Conditions) == 0 {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelWarning,
			Phase:      "conditions",
			Result:     "NO_CONDITIONS",
			Message:    "rule has no conditions defined",
			SourceIEEE: sourceIEEE,
		})
		return
	}

	watched := r.watchedAttributes()
	triggered := make([]string, 0, len(watched))
	for attr := range watched {
		if _, ok := changed[attr]; ok {
			triggered = append(triggered, attr)
		}
	}
	sort.Strings(triggered)
	if len(triggered) == 0 {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelDebug,
			Phase:      "relevance",
			Result:     "NOT_RELEVANT",
			Message:    fmt.Sprintf("watched attributes %v not in changed set %v", sortedSet(watched), sortedKeys(changed)),
			SourceIEEE: sourceIEEE,
			Detail:     map[string]any{"watched": sortedSet(watched), "changed": sortedKeys(changed)},
		})
		return
	}

	results, allMatched := e.evaluateConditions(r.Conditions, changed, fullState)

	target, targetOK := e.devices.Device(r.TargetIEEE)
	targetName := r.TargetIEEE
	if targetOK {
		targetName = target.Name()
	}

	if !allMatched {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelInfo,
			Phase:      "evaluate",
			Result:     "NO_MATCH",
			Message:    fmt.Sprintf("conditions not met: %s -> %s", sourceName, targetName),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Conditions: results,
		})
		return
	}

	e.mu.Lock()
	e.stats.matches++
	last, fired := e.cooldowns[r.ID]
	e.mu.Unlock()

	cooldown := time.Duration(r.Cooldown * float64(time.Second))
	if fired && now.Sub(last) < cooldown {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelInfo,
			Phase:      "cooldown",
			Result:     "BLOCKED",
			Message:    fmt.Sprintf("cooldown: %.1fs elapsed < %.0fs required", now.Sub(last).Seconds(), r.Cooldown),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Conditions: results,
		})
		return
	}

	if !targetOK {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelError,
			Phase:      "target",
			Result:     "TARGET_MISSING",
			Message:    fmt.Sprintf("target device %s not in registry", r.TargetIEEE),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Conditions: results,
		})
		return
	}
	if len(target.Endpoints) == 0 {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelError,
			Phase:      "target",
			Result:     "NO_SEND_COMMAND",
			Message:    fmt.Sprintf("target %s has no command surface (no endpoints)", targetName),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Conditions: results,
		})
		return
	}
	if !target.Available {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelWarning,
			Phase:      "target",
			Result:     "TARGET_UNAVAILABLE",
			Message:    fmt.Sprintf("target %s marked unavailable, attempting anyway", targetName),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Conditions: results,
		})
	}
	if warn := capabilityWarning(target.Capabilities(), r.Action.Command); warn != "" {
		e.addTrace(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelWarning,
			Phase:      "capability",
			Result:     "CAPABILITY_WARN",
			Message:    warn + ", attempting anyway",
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Command:    r.Action.Command,
			Conditions: results,
		})
	}

	summary := make([]string, 0, len(results))
	for _, cr := range results {
		summary = append(summary, fmt.Sprintf("%s=%v", cr.Attribute, cr.Actual))
	}

	// last_fired advances before dispatch so a burst of deltas cannot
	// double-fire the rule. Re-check under the lock in case a concurrent
	// evaluation won the race between the cooldown read and here.
	e.mu.Lock()
	if last, ok := e.cooldowns[r.ID]; ok && now.Sub(last) < cooldown {
		e.mu.Unlock()
		return
	}
	e.cooldowns[r.ID] = now
	e.addTraceLocked(TraceEntry{
		RuleID:     r.ID,
		Level:      LevelInfo,
		Phase:      "execute",
		Result:     "FIRING",
		Message:    fmt.Sprintf("%s [%s] -> %s %s", sourceName, strings.Join(summary, ", "), targetName, r.Action.Command),
		SourceIEEE: sourceIEEE,
		TargetIEEE: r.TargetIEEE,
		Command:    r.Action.Command,
		Value:      r.Action.Value,
		EndpointID: r.Action.EndpointID,
		Conditions: results,
	})
	e.mu.Unlock()

	go e.executeRule(r, sourceIEEE, targetName, results)
}

// evaluateConditions applies the rule's AND set: values resolve from the
// changed delta first, then the full device state. The first failure
// short-circuits.
func (e *Engine) evaluateConditions(conditions []Condition, changed, fullState map[string]any) ([]ConditionResult, bool) {
	results := make([]ConditionResult, 0, len(conditions))
	for i, cond := range conditions {
		res := ConditionResult{
			Index:     i + 1,
			Attribute: cond.Attribute,
			Operator:  cond.Operator,
			Threshold: normalizeCompareValue(cond.Value),
		}

		value, valueSource, found := resolveValue(cond.Attribute, changed, fullState)
		if !found {
			res.Result = "FAIL"
			res.Reason = fmt.Sprintf("attribute %q not in changed data or device state", cond.Attribute)
			return append(results, res), false
		}
		res.Actual = normalizeCompareValue(value)
		res.ValueSource = valueSource

		matched, err := compareCondition(value, cond.Operator, cond.Value)
		if err != nil {
			res.Result = "ERROR"
			res.Reason = err.Error()
			return append(results, res), false
		}
		if !matched {
			res.Result = "FAIL"
			return append(results, res), false
		}
		res.Result = "PASS"
		results = append(results, res)
	}
	return results, true
}

// executeRule dispatches the action and classifies the outcome. Panics are
// recovered into an EXCEPTION trace so a misbehaving handler cannot take
// down the evaluation path.
func (e *Engine) executeRule(r Rule, sourceIEEE, targetName string, results []ConditionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			e.mu.Lock()
			e.stats.errors++
			e.stats.executionFailures++
			e.addTraceLocked(TraceEntry{
				RuleID:     r.ID,
				Level:      LevelError,
				Phase:      "exception",
				Result:     "EXCEPTION",
				Message:    fmt.Sprintf("panic dispatching %s to %s: %v", r.Action.Command, targetName, rec),
				SourceIEEE: sourceIEEE,
				TargetIEEE: r.TargetIEEE,
				Command:    r.Action.Command,
			})
			e.mu.Unlock()
			e.emitTriggered(r, targetName, false, fmt.Sprint(rec))
		}
	}()

	e.addTrace(TraceEntry{
		RuleID:     r.ID,
		Level:      LevelDebug,
		Phase:      "sending",
		Result:     "CALLING",
		Message:    fmt.Sprintf("sending %s=%v to %s endpoint %d", r.Action.Command, r.Action.Value, targetName, r.Action.EndpointID),
		SourceIEEE: sourceIEEE,
		TargetIEEE: r.TargetIEEE,
		Command:    r.Action.Command,
	})

	res := e.devices.SendCommand(context.Background(), r.TargetIEEE, r.Action.Command, r.Action.Value, r.Action.EndpointID)

	e.mu.Lock()
	e.stats.executions++
	if res.Success {
		e.stats.executionSuccesses++
		e.addTraceLocked(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelInfo,
			Phase:      "result",
			Result:     "SUCCESS",
			Message:    fmt.Sprintf("%s %s=%v succeeded", targetName, r.Action.Command, r.Action.Value),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Command:    r.Action.Command,
			Value:      r.Action.Value,
			EndpointID: r.Action.EndpointID,
			Conditions: results,
		})
	} else {
		e.stats.executionFailures++
		e.addTraceLocked(TraceEntry{
			RuleID:     r.ID,
			Level:      LevelError,
			Phase:      "result",
			Result:     "COMMAND_FAILED",
			Message:    fmt.Sprintf("%s %s=%v failed: %s", targetName, r.Action.Command, r.Action.Value, res.Error),
			SourceIEEE: sourceIEEE,
			TargetIEEE: r.TargetIEEE,
			Command:    r.Action.Command,
			Value:      r.Action.Value,
			EndpointID: r.Action.EndpointID,
			Conditions: results,
		})
	}
	e.mu.Unlock()

	e.emitTriggered(r, targetName, res.Success, res.Error)
}

func (e *Engine) emitTriggered(r Rule, targetName string, success bool, errDetail string) {
	if e.events == nil {
		return
	}
	data := map[string]any{
		"rule_id":     r.ID,
		"source_ieee": r.SourceIEEE,
		"target_ieee": r.TargetIEEE,
		"target_name": targetName,
		"command":     r.Action.Command,
		"value":       r.Action.Value,
		"success":     success,
	}
	if errDetail != "" {
		data["error"] = errDetail
	}
	e.events.Emit(device.Event{
		Type:      device.EventAutomationFired,
		IEEE:      r.SourceIEEE,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// AddRule validates and persists a new rule. The single attribute/operator/
// value shorthand is folded into a one-element conditions list.
func (e *Engine) AddRule(req CreateRequest) (Rule, error) {
	conditions := req.Conditions
	if len(conditions) == 0 {
		if req.Attribute == "" || req.Operator == "" {
			return Rule{}, fmt.Errorf("provide a conditions list or attribute/operator/value fields: %w", device.ErrValidation)
		}
		conditions = []Condition{{Attribute: req.Attribute, Operator: req.Operator, Value: req.Value}}
	}
	if err := validateConditions(conditions); err != nil {
		return Rule{}, err
	}
	if req.SourceIEEE == "" || req.TargetIEEE == "" || req.Command == "" {
		return Rule{}, fmt.Errorf("source_ieee, target_ieee and command are required: %w", device.ErrValidation)
	}
	if !validCommands[req.Command] {
		return Rule{}, fmt.Errorf("invalid command %q: %w", req.Command, device.ErrValidation)
	}
	if _, ok := e.devices.Device(req.SourceIEEE); !ok {
		return Rule{}, fmt.Errorf("source device %s: %w", req.SourceIEEE, device.ErrNotFound)
	}
	if _, ok := e.devices.Device(req.TargetIEEE); !ok {
		return Rule{}, fmt.Errorf("target device %s: %w", req.TargetIEEE, device.ErrNotFound)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cooldown := DefaultCooldown
	if req.Cooldown != nil {
		cooldown = *req.Cooldown
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sourceIdx[req.SourceIEEE]) >= MaxRulesPerSource {
		return Rule{}, fmt.Errorf("maximum %d rules per source device reached: %w", MaxRulesPerSource, device.ErrValidation)
	}

	rule := &Rule{
		ID:         newRuleID(),
		Enabled:    enabled,
		SourceIEEE: req.SourceIEEE,
		Conditions: conditions,
		TargetIEEE: req.TargetIEEE,
		Action: Action{
			Command:    req.Command,
			Value:      req.CommandValue,
			EndpointID: req.EndpointID,
		},
		Cooldown: cooldown,
		Created:  nowSeconds(),
	}
	e.rules = append(e.rules, rule)
	e.rebuildIndexLocked()
	e.persistLocked()

	e.log.Info().
		Str("rule_id", rule.ID).
		Str("source", rule.SourceIEEE).
		Str("target", rule.TargetIEEE).
		Str("command", rule.Action.Command).
		Int("conditions", len(rule.Conditions)).
		Msg("automation rule added")
	return *rule, nil
}

// UpdateRule applies a partial update to an existing rule.
func (e *Engine) UpdateRule(ruleID string, req UpdateRequest) (Rule, error) {
	if len(req.Conditions) > 0 {
		if err := validateConditions(req.Conditions); err != nil {
			return Rule{}, err
		}
	}
	if req.Command != "" && !validCommands[req.Command] {
		return Rule{}, fmt.Errorf("invalid command %q: %w", req.Command, device.ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rule := e.findRuleLocked(ruleID)
	if rule == nil {
		return Rule{}, fmt.Errorf("rule %s: %w", ruleID, device.ErrNotFound)
	}

	if len(req.Conditions) > 0 {
		rule.Conditions = req.Conditions
	}
	if req.Command != "" {
		rule.Action.Command = req.Command
	}
	if req.CommandValue != nil {
		rule.Action.Value = req.CommandValue
	}
	if req.EndpointID != nil {
		rule.Action.EndpointID = *req.EndpointID
	}
	if req.TargetIEEE != "" {
		rule.TargetIEEE = req.TargetIEEE
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Cooldown != nil {
		rule.Cooldown = math.Max(0, *req.Cooldown)
	}
	rule.Updated = nowSeconds()

	e.rebuildIndexLocked()
	e.persistLocked()

	e.log.Info().Str("rule_id", ruleID).Msg("automation rule updated")
	return *rule, nil
}

// DeleteRule removes a rule and its cooldown state.
func (e *Engine) DeleteRule(ruleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, r := range e.rules {
		if r.ID == ruleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("rule %s: %w", ruleID, device.ErrNotFound)
	}
	e.rules = append(e.rules[:idx], e.rules[idx+1:]...)
	delete(e.cooldowns, ruleID)
	e.rebuildIndexLocked()
	e.persistLocked()

	e.log.Info().Str("rule_id", ruleID).Msg("automation rule deleted")
	return nil
}

// Rules returns all rules enriched with friendly names, optionally filtered
// by source device.
func (e *Engine) Rules(sourceIEEE string) []RuleView {
	e.mu.Lock()
	snapshot := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if sourceIEEE != "" && r.SourceIEEE != sourceIEEE {
			continue
		}
		snapshot = append(snapshot, *r)
	}
	e.mu.Unlock()

	views := make([]RuleView, 0, len(snapshot))
	for _, r := range snapshot {
		views = append(views, RuleView{
			Rule:       r,
			SourceName: e.deviceName(r.SourceIEEE),
			TargetName: e.deviceName(r.TargetIEEE),
		})
	}
	return views
}

// Rule returns a single rule by ID.
func (e *Engine) Rule(ruleID string) (Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r := e.findRuleLocked(ruleID); r != nil {
		return *r, true
	}
	return Rule{}, false
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	enabled := 0
	for _, r := range e.rules {
		if r.Enabled {
			enabled++
		}
	}
	return Stats{
		Evaluations:        e.stats.evaluations,
		Matches:            e.stats.matches,
		Executions:         e.stats.executions,
		ExecutionSuccesses: e.stats.executionSuccesses,
		ExecutionFailures:  e.stats.executionFailures,
		Errors:             e.stats.errors,
		TotalRules:         len(e.rules),
		EnabledRules:       enabled,
		TraceEntries:       len(e.trace),
	}
}

var attributeSkipList = map[string]bool{
	"last_seen":    true,
	"available":    true,
	"manufacturer": true,
	"model":        true,
	"power_source": true,
	"lqi":          true,
	"linkquality":  true,
}

// SourceAttributes lists a device's state attributes usable as rule
// conditions, with suggested operators per value type. Metadata keys and raw
// diagnostic attributes are filtered out.
func (e *Engine) SourceAttributes(ieee string) []AttributeInfo {
	dev, ok := e.devices.Device(ieee)
	if !ok {
		return nil
	}
	out := make([]AttributeInfo, 0, len(dev.State))
	for key, value := range dev.State {
		if attributeSkipList[key] || strings.HasSuffix(key, "_raw") || strings.HasPrefix(key, "attr_") {
			continue
		}
		info := AttributeInfo{Attribute: key, CurrentValue: value, Type: classifyValue(value)}
		switch value.(type) {
		case bool:
			info.Operators = []string{"eq", "neq"}
		case int, int64, float64:
			info.Operators = []string{"eq", "neq", "gt", "lt", "gte", "lte"}
		default:
			info.Operators = []string{"eq", "neq"}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute < out[j].Attribute })
	return out
}

// TargetCommands lists the normalised commands a device accepts, derived
// from its capability set.
func (e *Engine) TargetCommands(ieee string) []string {
	dev, ok := e.devices.Device(ieee)
	if !ok {
		return nil
	}
	caps := make(map[string]bool)
	for _, c := range dev.Capabilities() {
		caps[c] = true
	}
	var out []string
	if caps["on_off"] || caps["light"] || caps["switch"] {
		out = append(out, "on", "off", "toggle")
	}
	if caps["level_control"] || caps["light"] {
		out = append(out, "brightness")
	}
	if caps["color_control"] {
		out = append(out, "color_temp")
	}
	if caps["cover"] || caps["window_covering"] {
		out = append(out, "open", "close", "stop", "position")
	}
	return out
}

// capabilityWarning reports a non-empty message when the capability set does
// not advertise support for the command. The check is soft: the caller traces
// the warning and dispatches anyway.
func capabilityWarning(capabilities []string, command string) string {
	caps := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		caps[c] = true
	}
	var need []string
	switch command {
	case "on", "off", "toggle":
		need = []string{"on_off", "light", "switch"}
	case "brightness":
		need = []string{"level_control", "light"}
	case "color_temp":
		need = []string{"color_control"}
	case "open", "close", "stop", "position":
		need = []string{"cover", "window_covering"}
	default:
		return ""
	}
	for _, c := range need {
		if caps[c] {
			return ""
		}
	}
	return fmt.Sprintf("target does not advertise a capability for command %q", command)
}

func (e *Engine) deviceName(ieee string) string {
	if dev, ok := e.devices.Device(ieee); ok {
		return dev.Name()
	}
	return ieee
}

func (e *Engine) findRuleLocked(ruleID string) *Rule {
	for _, r := range e.rules {
		if r.ID == ruleID {
			return r
		}
	}
	return nil
}

func (e *Engine) rebuildIndexLocked() {
	e.sourceIdx = make(map[string][]string, len(e.rules))
	for _, r := range e.rules {
		if r.SourceIEEE != "" {
			e.sourceIdx[r.SourceIEEE] = append(e.sourceIdx[r.SourceIEEE], r.ID)
		}
	}
}

// persistLocked saves the rule set, logging failures. The in-memory change
// stands either way; the next successful save catches the file up.
func (e *Engine) persistLocked() {
	if err := saveRules(e.path, e.rules); err != nil {
		e.log.Warn().Err(err).Msg("failed to persist automation rules")
	}
}

func validateConditions(conditions []Condition) error {
	if len(conditions) > MaxConditionsPerRule {
		return fmt.Errorf("maximum %d conditions per rule: %w", MaxConditionsPerRule, device.ErrValidation)
	}
	for i, c := range conditions {
		if c.Attribute == "" {
			return fmt.Errorf("condition %d missing attribute: %w", i+1, device.ErrValidation)
		}
		if !validOperators[c.Operator] {
			return fmt.Errorf("condition %d invalid operator %q: %w", i+1, c.Operator, device.ErrValidation)
		}
	}
	return nil
}

func newRuleID() string {
	return "auto_" + uuid.Must(uuid.NewV4()).String()[:8]
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func resolveValue(attr string, changed, fullState map[string]any) (any, string, bool) {
	if v, ok := changed[attr]; ok {
		return v, "changed", true
	}
	if v, ok := fullState[attr]; ok {
		return v, "state", true
	}
	return nil, "", false
}

// normalizeCompareValue coerces strings holding booleans or numbers so state
// values and user thresholds compare by meaning rather than representation.
func normalizeCompareValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareCondition applies the operator between the current value and the
// rule threshold. Both sides compare numerically when possible; the ordering
// operators fall back to lexicographic comparison of the string forms.
func compareCondition(actual any, operator string, threshold any) (bool, error) {
	a := normalizeCompareValue(actual)
	t := normalizeCompareValue(threshold)

	an, aNum := asNumber(a)
	tn, tNum := asNumber(t)

	switch operator {
	case "eq":
		if aNum && tNum {
			return an == tn, nil
		}
		return reflect.DeepEqual(a, t), nil
	case "neq":
		if aNum && tNum {
			return an != tn, nil
		}
		return !reflect.DeepEqual(a, t), nil
	case "gt", "lt", "gte", "lte":
		if aNum && tNum {
			switch operator {
			case "gt":
				return an > tn, nil
			case "lt":
				return an < tn, nil
			case "gte":
				return an >= tn, nil
			default:
				return an <= tn, nil
			}
		}
		as, ts := fmt.Sprint(a), fmt.Sprint(t)
		switch operator {
		case "gt":
			return as > ts, nil
		case "lt":
			return as < ts, nil
		case "gte":
			return as >= ts, nil
		default:
			return as <= ts, nil
		}
	}
	return false, fmt.Errorf("unknown operator %q", operator)
}

func classifyValue(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int, int64:
		return "integer"
	case float64:
		return "float"
	default:
		return "string"
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
