package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/device"
)

const (
	sensorIEEE  = "00158d0001aabbcc"
	sensor2IEEE = "00158d0002aabbcc"
	lightIEEE   = "00158d0001ddeeff"
	switchIEEE  = "00158d0001001122"
)

var _ device.DeltaConsumer = (*Engine)(nil)

type sentCommand struct {
	IEEE     string
	Command  string
	Value    any
	Endpoint uint8
}

type fakeDirectory struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	results map[string]device.CommandResult
	calls   chan sentCommand
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		devices: make(map[string]*device.Device),
		results: make(map[string]device.CommandResult),
		calls:   make(chan sentCommand, 16),
	}
}

func (f *fakeDirectory) add(d *device.Device) {
	f.mu.Lock()
	f.devices[d.IEEE] = d
	f.mu.Unlock()
}

func (f *fakeDirectory) remove(ieee string) {
	f.mu.Lock()
	delete(f.devices, ieee)
	f.mu.Unlock()
}

func (f *fakeDirectory) Device(ieee string) (device.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[ieee]
	if !ok {
		return device.Device{}, false
	}
	return *d, true
}

func (f *fakeDirectory) SendCommand(_ context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult {
	f.mu.Lock()
	res, ok := f.results[ieee]
	f.mu.Unlock()
	f.calls <- sentCommand{IEEE: ieee, Command: command, Value: value, Endpoint: endpointID}
	if !ok {
		return device.OK()
	}
	return res
}

func sensorDevice() *device.Device {
	return &device.Device{
		IEEE:         sensorIEEE,
		Protocol:     device.ProtocolZigbee,
		FriendlyName: "Hall Motion",
		Available:    true,
		State:        map[string]any{"occupancy": false, "illuminance": int64(40), "battery": int64(87)},
		Endpoints:    map[uint8]*device.Endpoint{1: {ID: 1, InClusters: []uint16{0x0406}}},
	}
}

func lightDevice() *device.Device {
	return &device.Device{
		IEEE:         lightIEEE,
		Protocol:     device.ProtocolZigbee,
		FriendlyName: "Hall Light",
		Available:    true,
		State:        map[string]any{"state": "off"},
		Endpoints:    map[uint8]*device.Endpoint{1: {ID: 1, InClusters: []uint16{0x0006, 0x0008}}},
	}
}

func switchDevice() *device.Device {
	return &device.Device{
		IEEE:         switchIEEE,
		Protocol:     device.ProtocolZigbee,
		FriendlyName: "Plug",
		Available:    true,
		State:        map[string]any{"state": "off"},
		Endpoints:    map[uint8]*device.Endpoint{1: {ID: 1, InClusters: []uint16{0x0006}}},
	}
}

func newTestEngine(t *testing.T, dir *fakeDirectory) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "automations.json")
	return NewEngine(path, dir, device.NewBroker(), zerolog.Nop())
}

func motionRule() CreateRequest {
	return CreateRequest{
		SourceIEEE: sensorIEEE,
		TargetIEEE: lightIEEE,
		Command:    "on",
		Conditions: []Condition{{Attribute: "occupancy", Operator: "eq", Value: true}},
	}
}

func mustAddRule(t *testing.T, e *Engine, req CreateRequest) Rule {
	t.Helper()
	rule, err := e.AddRule(req)
	require.NoError(t, err)
	return rule
}

func waitForCommand(t *testing.T, dir *fakeDirectory) sentCommand {
	t.Helper()
	select {
	case cmd := <-dir.calls:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("expected a command dispatch")
		return sentCommand{}
	}
}

func assertNoCommand(t *testing.T, dir *fakeDirectory) {
	t.Helper()
	select {
	case cmd := <-dir.calls:
		t.Fatalf("unexpected command dispatch: %+v", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func traceResults(e *Engine) []string {
	entries := e.Trace()
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Result)
	}
	return out
}

func findTrace(t *testing.T, e *Engine, result string) TraceEntry {
	t.Helper()
	for _, entry := range e.Trace() {
		if entry.Result == result {
			return entry
		}
	}
	t.Fatalf("no trace entry with result %s, have %v", result, traceResults(e))
	return TraceEntry{}
}

func TestAddRuleDefaults(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	rule, err := e.AddRule(CreateRequest{
		SourceIEEE: sensorIEEE,
		TargetIEEE: lightIEEE,
		Command:    "on",
		Attribute:  "occupancy",
		Operator:   "eq",
		Value:      true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rule.ID, "auto_"))
	assert.Len(t, rule.ID, len("auto_")+8)
	assert.True(t, rule.Enabled)
	assert.Equal(t, DefaultCooldown, rule.Cooldown)
	assert.Greater(t, rule.Created, float64(0))
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, "occupancy", rule.Conditions[0].Attribute)
	assert.Equal(t, "eq", rule.Conditions[0].Operator)
}

func TestAddRulePersistsAcrossRestart(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	path := filepath.Join(t.TempDir(), "automations.json")

	e := NewEngine(path, dir, device.NewBroker(), zerolog.Nop())
	rule := mustAddRule(t, e, motionRule())

	e2 := NewEngine(path, dir, device.NewBroker(), zerolog.Nop())
	views := e2.Rules("")
	require.Len(t, views, 1)
	assert.Equal(t, rule.ID, views[0].ID)
	assert.Equal(t, "Hall Motion", views[0].SourceName)
	assert.Equal(t, "Hall Light", views[0].TargetName)
}

func TestAddRuleValidation(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	tooMany := make([]Condition, MaxConditionsPerRule+1)
	for i := range tooMany {
		tooMany[i] = Condition{Attribute: "occupancy", Operator: "eq", Value: true}
	}

	cases := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{"no conditions or shorthand", func(r *CreateRequest) { r.Conditions = nil }, device.ErrValidation},
		{"invalid command", func(r *CreateRequest) { r.Command = "explode" }, device.ErrValidation},
		{"invalid operator", func(r *CreateRequest) { r.Conditions[0].Operator = "contains" }, device.ErrValidation},
		{"empty attribute", func(r *CreateRequest) { r.Conditions[0].Attribute = "" }, device.ErrValidation},
		{"too many conditions", func(r *CreateRequest) { r.Conditions = tooMany }, device.ErrValidation},
		{"missing source", func(r *CreateRequest) { r.SourceIEEE = "" }, device.ErrValidation},
		{"unknown source", func(r *CreateRequest) { r.SourceIEEE = "feedfacefeedface" }, device.ErrNotFound},
		{"unknown target", func(r *CreateRequest) { r.TargetIEEE = "feedfacefeedface" }, device.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := motionRule()
			tc.mutate(&req)
			_, err := e.AddRule(req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Empty(t, e.Rules(""))
}

func TestAddRulePerSourceLimit(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	for i := 0; i < MaxRulesPerSource; i++ {
		mustAddRule(t, e, motionRule())
	}
	_, err := e.AddRule(motionRule())
	assert.ErrorIs(t, err, device.ErrValidation)
	assert.Len(t, e.Rules(sensorIEEE), MaxRulesPerSource)
}

func TestEvaluateFires(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.DeviceStateChanged(sensorIEEE, map[string]any{"occupancy": true})

	cmd := waitForCommand(t, dir)
	assert.Equal(t, lightIEEE, cmd.IEEE)
	assert.Equal(t, "on", cmd.Command)
	assert.Nil(t, cmd.Value)
	assert.EqualValues(t, 0, cmd.Endpoint)

	time.Sleep(20 * time.Millisecond)
	stats := e.Stats()
	assert.EqualValues(t, 1, stats.Evaluations)
	assert.EqualValues(t, 1, stats.Matches)
	assert.EqualValues(t, 1, stats.Executions)
	assert.EqualValues(t, 1, stats.ExecutionSuccesses)
	assert.Contains(t, traceResults(e), "FIRING")
	assert.Contains(t, traceResults(e), "SUCCESS")

	firing := findTrace(t, e, "FIRING")
	require.Len(t, firing.Conditions, 1)
	assert.Equal(t, "PASS", firing.Conditions[0].Result)
	assert.Equal(t, "changed", firing.Conditions[0].ValueSource)
}

func TestEvaluateEmitsTriggeredEvent(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	broker := device.NewBroker()
	path := filepath.Join(t.TempDir(), "automations.json")
	e := NewEngine(path, dir, broker, zerolog.Nop())
	rule := mustAddRule(t, e, motionRule())

	events := broker.Subscribe()
	defer broker.Unsubscribe(events)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Type != device.EventAutomationFired {
				continue
			}
			assert.Equal(t, sensorIEEE, evt.IEEE)
			assert.Equal(t, rule.ID, evt.Data["rule_id"])
			assert.Equal(t, lightIEEE, evt.Data["target_ieee"])
			assert.Equal(t, "on", evt.Data["command"])
			assert.Equal(t, true, evt.Data["success"])
			return
		case <-deadline:
			t.Fatal("automation_triggered event not emitted")
		}
	}
}

func TestEvaluateCooldownBlocks(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)

	stats := e.Stats()
	assert.EqualValues(t, 2, stats.Matches)
	assert.EqualValues(t, 1, stats.Executions)
	blocked := findTrace(t, e, "BLOCKED")
	assert.Equal(t, "cooldown", blocked.Phase)
	assert.Contains(t, blocked.Message, "cooldown")
}

func TestEvaluateZeroCooldownFiresEveryTime(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	zero := 0.0
	req := motionRule()
	req.Cooldown = &zero
	mustAddRule(t, e, req)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)
}

func TestEvaluateNotRelevant(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"battery": int64(90)})
	assertNoCommand(t, dir)

	stats := e.Stats()
	assert.EqualValues(t, 1, stats.Evaluations)
	assert.Zero(t, stats.Matches)
	assert.Contains(t, traceResults(e), "NOT_RELEVANT")
}

func TestEvaluateDisabledRule(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	disabled := false
	req := motionRule()
	req.Enabled = &disabled
	mustAddRule(t, e, req)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
	assert.Contains(t, traceResults(e), "DISABLED")
}

func TestEvaluateNoMatch(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": false})
	assertNoCommand(t, dir)

	noMatch := findTrace(t, e, "NO_MATCH")
	require.Len(t, noMatch.Conditions, 1)
	assert.Equal(t, "FAIL", noMatch.Conditions[0].Result)
	assert.Zero(t, e.Stats().Matches)
}

func TestEvaluateResolvesFromDeviceState(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	req := motionRule()
	req.Conditions = []Condition{
		{Attribute: "occupancy", Operator: "eq", Value: true},
		{Attribute: "illuminance", Operator: "lt", Value: 50},
	}
	mustAddRule(t, e, req)

	// illuminance is absent from the delta and resolves from device state (40).
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)

	time.Sleep(20 * time.Millisecond)
	firing := findTrace(t, e, "FIRING")
	require.Len(t, firing.Conditions, 2)
	assert.Equal(t, "changed", firing.Conditions[0].ValueSource)
	assert.Equal(t, "state", firing.Conditions[1].ValueSource)
}

func TestEvaluateConditionAttributeMissing(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)

	req := motionRule()
	req.Conditions = []Condition{
		{Attribute: "occupancy", Operator: "eq", Value: true},
		{Attribute: "humidity", Operator: "gt", Value: 10},
	}
	mustAddRule(t, e, req)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)

	noMatch := findTrace(t, e, "NO_MATCH")
	require.Len(t, noMatch.Conditions, 2)
	assert.Contains(t, noMatch.Conditions[1].Reason, "not in changed data or device state")
}

func TestEvaluateSourceMissing(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	dir.remove(sensorIEEE)
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
	assert.Contains(t, traceResults(e), "SOURCE_MISSING")
}

func TestEvaluateTargetMissing(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	dir.remove(lightIEEE)
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
	assert.Contains(t, traceResults(e), "TARGET_MISSING")
}

func TestEvaluateTargetWithoutEndpoints(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	bare := lightDevice()
	bare.Endpoints = nil
	dir.add(bare)
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
	assert.Contains(t, traceResults(e), "NO_SEND_COMMAND")
}

func TestEvaluateCapabilityWarningStillFires(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(switchDevice())
	e := newTestEngine(t, dir)

	req := motionRule()
	req.TargetIEEE = switchIEEE
	req.Command = "brightness"
	req.CommandValue = 128
	mustAddRule(t, e, req)

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	cmd := waitForCommand(t, dir)
	assert.Equal(t, "brightness", cmd.Command)
	assert.Equal(t, 128, cmd.Value)
	assert.Contains(t, traceResults(e), "CAPABILITY_WARN")
}

func TestEvaluateUnavailableTargetStillFires(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	offline := lightDevice()
	offline.Available = false
	dir.add(offline)
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)
	assert.Contains(t, traceResults(e), "TARGET_UNAVAILABLE")
}

func TestEvaluateCommandFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	dir.results[lightIEEE] = device.Failed(errors.New("no ack from device"))
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)

	time.Sleep(20 * time.Millisecond)
	stats := e.Stats()
	assert.EqualValues(t, 1, stats.Executions)
	assert.EqualValues(t, 1, stats.ExecutionFailures)
	failed := findTrace(t, e, "COMMAND_FAILED")
	assert.Contains(t, failed.Message, "no ack from device")
}

func TestEvaluateStringCoercion(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	// Some quirk devices report booleans as strings.
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": "true"})
	waitForCommand(t, dir)
}

func TestEvaluateNoRulesForSource(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	mustAddRule(t, e, motionRule())

	e.Evaluate("feedfacefeedface", map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
	assert.Zero(t, e.Stats().Evaluations)
}

func TestCompareCondition(t *testing.T) {
	cases := []struct {
		name      string
		actual    any
		operator  string
		threshold any
		want      bool
		wantErr   bool
	}{
		{"float gt", 21.5, "gt", 20, true, false},
		{"int lte string threshold", int64(10), "lte", "10", true, false},
		{"string eq", "on", "eq", "on", true, false},
		{"string neq", "on", "neq", "off", true, false},
		{"bool eq one", true, "eq", 1, true, false},
		{"bool eq zero", false, "eq", 0, true, false},
		{"string bool eq bool", "true", "eq", true, true, false},
		{"numeric string gt", "21.5", "gt", 20, true, false},
		{"int gt numeric string", 5, "gt", "4", true, false},
		{"gte boundary", 20.0, "gte", 20, true, false},
		{"lt fails", 30, "lt", 20, false, false},
		{"lexicographic fallback", "abc", "gt", "abd", false, false},
		{"unknown operator", 5, "between", 5, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := compareCondition(tc.actual, tc.operator, tc.threshold)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUpdateRule(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	rule := mustAddRule(t, e, motionRule())

	disabled := false
	negative := -3.0
	got, err := e.UpdateRule(rule.ID, UpdateRequest{
		Enabled:  &disabled,
		Cooldown: &negative,
		Command:  "off",
	})
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Zero(t, got.Cooldown)
	assert.Equal(t, "off", got.Action.Command)
	assert.Greater(t, got.Updated, float64(0))

	got, err = e.UpdateRule(rule.ID, UpdateRequest{
		Conditions: []Condition{{Attribute: "illuminance", Operator: "lt", Value: 10}},
	})
	require.NoError(t, err)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, "illuminance", got.Conditions[0].Attribute)

	_, err = e.UpdateRule(rule.ID, UpdateRequest{Command: "warp"})
	assert.ErrorIs(t, err, device.ErrValidation)

	_, err = e.UpdateRule("auto_missing", UpdateRequest{})
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestDeleteRule(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	e := newTestEngine(t, dir)
	rule := mustAddRule(t, e, motionRule())

	require.NoError(t, e.DeleteRule(rule.ID))
	assert.Empty(t, e.Rules(""))
	assert.ErrorIs(t, e.DeleteRule(rule.ID), device.ErrNotFound)

	// The index no longer routes evaluations to the deleted rule.
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	assertNoCommand(t, dir)
}

func TestRulesFilterBySource(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	second := sensorDevice()
	second.IEEE = sensor2IEEE
	second.FriendlyName = "Porch Motion"
	dir.add(second)
	e := newTestEngine(t, dir)

	mustAddRule(t, e, motionRule())
	req := motionRule()
	req.SourceIEEE = sensor2IEEE
	mustAddRule(t, e, req)

	assert.Len(t, e.Rules(""), 2)
	filtered := e.Rules(sensor2IEEE)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Porch Motion", filtered[0].SourceName)
}

func TestLegacyThresholdMigration(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(sensorDevice())
	dir.add(lightDevice())
	path := filepath.Join(t.TempDir(), "automations.json")

	legacy := `{"rules":[{"id":"auto_legacy01","enabled":true,"source_ieee":"` + sensorIEEE + `","target_ieee":"` + lightIEEE + `","threshold":{"attribute":"occupancy","operator":"eq","value":true},"action":{"command":"on"},"cooldown":5,"created":1700000000}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	e := NewEngine(path, dir, device.NewBroker(), zerolog.Nop())

	rule, ok := e.Rule("auto_legacy01")
	require.True(t, ok)
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, "occupancy", rule.Conditions[0].Attribute)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"threshold"`)
	assert.Contains(t, string(raw), `"conditions"`)

	// The migrated rule still evaluates.
	e.Evaluate(sensorIEEE, map[string]any{"occupancy": true})
	waitForCommand(t, dir)
}

func TestCorruptRuleFileStartsEmpty(t *testing.T) {
	dir := newFakeDirectory()
	path := filepath.Join(t.TempDir(), "automations.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	e := NewEngine(path, dir, device.NewBroker(), zerolog.Nop())
	assert.Empty(t, e.Rules(""))
}

func TestSourceAttributes(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(&device.Device{
		IEEE:      sensorIEEE,
		Protocol:  device.ProtocolZigbee,
		Available: true,
		State: map[string]any{
			"occupancy":    true,
			"battery":      int64(87),
			"temperature":  21.5,
			"model":        "TS0601",
			"last_seen":    int64(1700000000),
			"linkquality":  int64(120),
			"zone_raw":     int64(5),
			"attr_0x0021":  int64(1),
			"mode":         "auto",
		},
	})
	e := newTestEngine(t, dir)

	attrs := e.SourceAttributes(sensorIEEE)
	names := make([]string, 0, len(attrs))
	byName := make(map[string]AttributeInfo, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Attribute)
		byName[a.Attribute] = a
	}
	assert.Equal(t, []string{"battery", "mode", "occupancy", "temperature"}, names)

	assert.Equal(t, "boolean", byName["occupancy"].Type)
	assert.Equal(t, []string{"eq", "neq"}, byName["occupancy"].Operators)
	assert.Equal(t, "integer", byName["battery"].Type)
	assert.Equal(t, []string{"eq", "neq", "gt", "lt", "gte", "lte"}, byName["battery"].Operators)
	assert.Equal(t, "float", byName["temperature"].Type)
	assert.Equal(t, "string", byName["mode"].Type)

	assert.Nil(t, e.SourceAttributes("feedfacefeedface"))
}

func TestTargetCommands(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(lightDevice())
	dir.add(switchDevice())
	dir.add(&device.Device{
		IEEE:      sensor2IEEE,
		Protocol:  device.ProtocolZigbee,
		Available: true,
		Endpoints: map[uint8]*device.Endpoint{1: {ID: 1, InClusters: []uint16{0x0102}}},
	})
	e := newTestEngine(t, dir)

	assert.Equal(t, []string{"on", "off", "toggle", "brightness"}, e.TargetCommands(lightIEEE))
	assert.Equal(t, []string{"on", "off", "toggle"}, e.TargetCommands(switchIEEE))
	assert.Equal(t, []string{"open", "close", "stop", "position"}, e.TargetCommands(sensor2IEEE))
	assert.Nil(t, e.TargetCommands("feedfacefeedface"))
}

func TestTraceRingCapped(t *testing.T) {
	dir := newFakeDirectory()
	e := newTestEngine(t, dir)

	for i := 0; i < maxTraceEntries+50; i++ {
		e.addTrace(TraceEntry{RuleID: "-", Level: LevelDebug, Phase: "entry", Result: "EVALUATING"})
	}
	entries := e.Trace()
	assert.Len(t, entries, maxTraceEntries)
	for _, entry := range entries {
		assert.Greater(t, entry.Timestamp, float64(0))
	}
}
