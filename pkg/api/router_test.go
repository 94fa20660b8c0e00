package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/handlers"
	"github.com/urmzd/zigman/pkg/spectrum"
	"github.com/urmzd/zigman/pkg/touchlink"
	"github.com/urmzd/zigman/pkg/zones"
)

const (
	sensorIEEE = "00124b0012345678"
	lightIEEE  = "00124b00aabbccdd"
	plugIEEE   = "00124b0011223344"
)

// scriptedRadio drives the API stack without a serial port. Unscripted
// operations fall through to the null radio.
type scriptedRadio struct {
	device.Radio

	mu        sync.Mutex
	connected bool
	cmdErr    error
	energies  map[int]float64
	permits   []uint8
	left      []string
	commands  []uint8
}

func newScriptedRadio() *scriptedRadio {
	return &scriptedRadio{Radio: device.NewNullRadio(), connected: true}
}

func (r *scriptedRadio) CoordinatorIEEE() string { return "00124b00c0ffee00" }

func (r *scriptedRadio) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *scriptedRadio) PermitJoin(ctx context.Context, seconds uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return device.ErrNotConnected
	}
	r.permits = append(r.permits, seconds)
	return nil
}

func (r *scriptedRadio) Leave(ctx context.Context, addr device.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, addr.IEEE)
	return nil
}

func (r *scriptedRadio) SendClusterCommand(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, commandID uint8, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmdErr != nil {
		return r.cmdErr
	}
	r.commands = append(r.commands, commandID)
	return nil
}

func (r *scriptedRadio) EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return nil, device.ErrNotConnected
	}
	out := make(map[int]float64, len(channels))
	for _, ch := range channels {
		if e, ok := r.energies[ch]; ok {
			out[ch] = e
		} else {
			out[ch] = 80
		}
	}
	return out, nil
}

func (r *scriptedRadio) setConnected(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = v
}

func (r *scriptedRadio) setCmdErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmdErr = err
}

func (r *scriptedRadio) setEnergies(e map[int]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.energies = e
}

func (r *scriptedRadio) permitted() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.permits...)
}

func (r *scriptedRadio) leftDevices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.left...)
}

func (r *scriptedRadio) sentCommands() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.commands...)
}

// apiEnv wires the full daemon stack behind an in-process router, with the
// scripted radio standing in for the coordinator.
type apiEnv struct {
	radio  *scriptedRadio
	engine *device.Engine
	zones  *zones.Manager
	router *Router
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	dir := t.TempDir()
	database, err := db.Open(filepath.Join(dir, "zigman.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(context.Background()))

	radio := newScriptedRadio()
	events := device.NewBroker()
	engine := device.NewEngine(radio, handlers.NewRegistry(), device.NewStatsTracker(), events, zerolog.Nop())

	directory := gateway.NewDirectory(engine, nil)
	rules := automation.NewEngine(filepath.Join(dir, "automations.json"), directory, events, zerolog.Nop())
	engine.SetDeltaConsumer(rules)

	manager := zones.NewManager(directory, radio, "zigman", zerolog.Nop())
	intake := zones.NewIntake(manager, zerolog.Nop())

	decoder := fastpath.NewDecoder(engine, zerolog.Nop())
	gw := gateway.New(engine, decoder, intake, database.Cache(), database.Names(), nil, zerolog.Nop())

	monitor := spectrum.NewMonitor(radio, database.Spectrum(), time.Hour, zerolog.Nop())
	session := touchlink.NewSession(nil, zerolog.Nop())

	registry := prometheus.NewRegistry()
	registry.MustRegister(gateway.NewCollector(engine, gw, decoder, rules, nil))

	router := NewRouter(Deps{
		Engine:     engine,
		Directory:  directory,
		Gateway:    gw,
		Rules:      rules,
		Zones:      manager,
		Intake:     intake,
		Touchlink:  session,
		Spectrum:   monitor,
		SpectrumDB: database.Spectrum(),
		Decoder:    decoder,
		Events:     events,
		Metrics:    registry,
	}, zerolog.Nop())

	return &apiEnv{radio: radio, engine: engine, zones: manager, router: router}
}

func (e *apiEnv) addDevice(t *testing.T, ieee string, nwk uint16, clusters ...uint16) {
	t.Helper()
	if len(clusters) == 0 {
		clusters = []uint16{0x0006}
	}
	_, created := e.engine.AddDevice(ieee, nwk, "zigbee")
	require.True(t, created)
	require.NoError(t, e.engine.SetEndpoints(ieee, []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  0x0104,
		InClusters: clusters,
	}}))
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health types.HealthResponse
	decodeBody(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Radio)
	assert.Equal(t, "disabled", health.MQTT)
	assert.Equal(t, "disabled", health.Matter)
	assert.Equal(t, 1, health.Devices)

	// The unversioned alias serves probes that predate /api/v1.
	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.radio.setConnected(false)
	w = env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	decodeBody(t, w, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "disconnected", health.Radio)
}

func TestDocsRedirect(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/swagger/index.html", w.Header().Get("Location"))
}

func TestListDevices(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0402, 0x0406)

	w := env.do(t, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list types.ListDevicesResponse
	decodeBody(t, w, &list)
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Devices, 2)
}

func TestGetDeviceLookupForms(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodGet, "/api/v1/devices/"+lightIEEE, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.DeviceResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, lightIEEE, resp.Device.IEEE)
	assert.Contains(t, resp.Device.Capabilities, "on_off")

	// Colon-separated IEEE normalises to the same device.
	w = env.do(t, http.MethodGet, "/api/v1/devices/00:12:4b:00:aa:bb:cc:dd", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/devices/"+lightIEEE, types.RenameDeviceRequest{FriendlyName: "ceiling light"})
	require.Equal(t, http.StatusOK, w.Code)

	// Friendly names resolve, raw and in safe form.
	w = env.do(t, http.MethodGet, "/api/v1/devices/ceiling%20light", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/devices/ceiling_light", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/devices/ffffffffffffffff", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	var apiErr types.ErrorResponse
	decodeBody(t, w, &apiErr)
	assert.Equal(t, "not_found", apiErr.Error)
}

func TestRenameDeviceValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodPatch, "/api/v1/devices/"+lightIEEE, map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var apiErr types.ErrorResponse
	decodeBody(t, w, &apiErr)
	assert.Equal(t, "invalid_request", apiErr.Error)
}

func TestSendCommand(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodPost, "/api/v1/devices/"+lightIEEE+"/state", types.CommandRequest{Command: "on"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.CommandResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "on", resp.Command)
	assert.Equal(t, "ON", resp.State["state"])

	// A bare state document normalises into the same command vocabulary.
	w = env.do(t, http.MethodPost, "/api/v1/devices/"+lightIEEE+"/state", map[string]any{"state": "OFF"})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "off", resp.Command)
	assert.Equal(t, "OFF", resp.State["state"])

	// ZCL on=0x01, off=0x00.
	assert.Equal(t, []uint8{0x01, 0x00}, env.radio.sentCommands())
}

func TestSendCommandErrors(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodPost, "/api/v1/devices/"+lightIEEE+"/state", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/devices/"+lightIEEE+"/state", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/devices/ffffffffffffffff/state", types.CommandRequest{Command: "on"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.radio.setCmdErr(errors.New("delivery failed"))
	w = env.do(t, http.MethodPost, "/api/v1/devices/"+lightIEEE+"/state", types.CommandRequest{Command: "on"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp types.CommandResponse
	decodeBody(t, w, &resp)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestGetDeviceState(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0402)
	env.engine.UpdateState(sensorIEEE, map[string]any{"temperature": 21.5})

	w := env.do(t, http.MethodGet, "/api/v1/devices/"+sensorIEEE+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.StateResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, sensorIEEE, resp.IEEE)
	assert.Equal(t, 21.5, resp.State["temperature"])
}

func TestRemoveDevice(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodDelete, "/api/v1/devices/"+lightIEEE, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{lightIEEE}, env.radio.leftDevices())

	w = env.do(t, http.MethodGet, "/api/v1/devices/"+lightIEEE, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscoveryWindow(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/discovery/start", types.StartDiscoveryRequest{DurationSeconds: 60})
	require.Equal(t, http.StatusOK, w.Code)
	var start types.StartDiscoveryResponse
	decodeBody(t, w, &start)
	assert.Equal(t, "pairing_enabled", start.Status)
	assert.Equal(t, 60, start.DurationSeconds)

	w = env.do(t, http.MethodPost, "/api/v1/discovery/start", types.StartDiscoveryRequest{DurationSeconds: 400})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/discovery/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stop types.StopDiscoveryResponse
	decodeBody(t, w, &stop)
	assert.Equal(t, "pairing_disabled", stop.Status)
	assert.Equal(t, []uint8{60, 0}, env.radio.permitted())

	env.radio.setConnected(false)
	w = env.do(t, http.MethodPost, "/api/v1/discovery/start", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var apiErr types.ErrorResponse
	decodeBody(t, w, &apiErr)
	assert.Equal(t, "radio_disconnected", apiErr.Error)
}

func TestAutomationLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0406)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodPost, "/api/v1/automations", automation.CreateRequest{
		SourceIEEE: sensorIEEE,
		TargetIEEE: lightIEEE,
		Command:    "on",
		Attribute:  "occupancy",
		Operator:   "eq",
		Value:      true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created types.RuleResponse
	decodeBody(t, w, &created)
	require.NotEmpty(t, created.Rule.ID)
	assert.True(t, created.Rule.Enabled)
	assert.Equal(t, 5.0, created.Rule.Cooldown)
	require.Len(t, created.Rule.Conditions, 1)
	assert.Equal(t, "occupancy", created.Rule.Conditions[0].Attribute)
	id := created.Rule.ID

	w = env.do(t, http.MethodGet, "/api/v1/automations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list types.RulesResponse
	decodeBody(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, lightIEEE, list.Rules[0].TargetIEEE)
	assert.NotEmpty(t, list.Rules[0].SourceName)

	w = env.do(t, http.MethodGet, "/api/v1/automations/rule/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/automations/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggled types.RuleResponse
	decodeBody(t, w, &toggled)
	assert.False(t, toggled.Rule.Enabled)

	cooldown := 2.5
	w = env.do(t, http.MethodPut, "/api/v1/automations/"+id, automation.UpdateRequest{Cooldown: &cooldown})
	require.Equal(t, http.StatusOK, w.Code)
	var updated types.RuleResponse
	decodeBody(t, w, &updated)
	assert.Equal(t, 2.5, updated.Rule.Cooldown)

	w = env.do(t, http.MethodDelete, "/api/v1/automations/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/automations/rule/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRuleValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	// Commands outside the vocabulary fail the request schema.
	w := env.do(t, http.MethodPost, "/api/v1/automations", map[string]any{
		"source_ieee": lightIEEE,
		"target_ieee": lightIEEE,
		"command":     "explode",
		"attribute":   "state",
		"operator":    "eq",
		"value":       "ON",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var apiErr types.ErrorResponse
	decodeBody(t, w, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Error)

	w = env.do(t, http.MethodPost, "/api/v1/automations", map[string]any{
		"source_ieee": "ffffffffffffffff",
		"target_ieee": lightIEEE,
		"command":     "on",
		"attribute":   "occupancy",
		"operator":    "eq",
		"value":       true,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutomationIntrospection(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0402, 0x0406)
	env.addDevice(t, lightIEEE, 0x1122)
	env.engine.UpdateState(sensorIEEE, map[string]any{"temperature": 21.5, "occupancy": true})

	w := env.do(t, http.MethodGet, "/api/v1/automations/device/"+sensorIEEE+"/attributes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var attrs types.AttributesResponse
	decodeBody(t, w, &attrs)
	byName := make(map[string]automation.AttributeInfo, len(attrs.Attributes))
	for _, a := range attrs.Attributes {
		byName[a.Attribute] = a
	}
	require.Contains(t, byName, "occupancy")
	assert.Equal(t, []string{"eq", "neq"}, byName["occupancy"].Operators)
	require.Contains(t, byName, "temperature")
	assert.Contains(t, byName["temperature"].Operators, "gte")

	w = env.do(t, http.MethodGet, "/api/v1/automations/device/"+lightIEEE+"/actions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var actions types.ActionsResponse
	decodeBody(t, w, &actions)
	assert.Equal(t, []string{"on", "off", "toggle"}, actions.Commands)

	w = env.do(t, http.MethodGet, "/api/v1/automations/actuators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var actuators types.ActuatorsResponse
	decodeBody(t, w, &actuators)
	require.Equal(t, 1, actuators.Count)
	assert.Equal(t, lightIEEE, actuators.Actuators[0].IEEE)

	w = env.do(t, http.MethodGet, "/api/v1/automations/device/ffffffffffffffff/attributes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZoneLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0406)
	env.addDevice(t, lightIEEE, 0x1122)
	env.addDevice(t, plugIEEE, 0x5566)

	w := env.do(t, http.MethodPost, "/api/v1/zones", zones.Config{
		Name:        "hallway",
		DeviceIEEEs: []string{sensorIEEE, lightIEEE},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created types.ZoneResponse
	decodeBody(t, w, &created)
	assert.Equal(t, "hallway", created.Zone.Name)
	assert.True(t, created.Zone.Calibrating)

	w = env.do(t, http.MethodPost, "/api/v1/zones", zones.Config{
		Name:        "hallway",
		DeviceIEEEs: []string{sensorIEEE, lightIEEE},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A single device cannot form a link pair.
	w = env.do(t, http.MethodPost, "/api/v1/zones", zones.Config{
		Name:        "closet",
		DeviceIEEEs: []string{plugIEEE},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/zones", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list types.ZonesResponse
	decodeBody(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = env.do(t, http.MethodGet, "/api/v1/zones/hallway", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	threshold := 3.5
	w = env.do(t, http.MethodPut, "/api/v1/zones/hallway", zones.UpdateRequest{DeviationThreshold: &threshold})
	require.Equal(t, http.StatusOK, w.Code)
	var updated types.ZoneResponse
	decodeBody(t, w, &updated)
	assert.Equal(t, 3.5, updated.Zone.DeviationThreshold)

	w = env.do(t, http.MethodPost, "/api/v1/zones/hallway/devices", types.ZoneDevicesRequest{Add: []string{plugIEEE}})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &updated)
	assert.Len(t, updated.Zone.DeviceIEEEs, 3)

	w = env.do(t, http.MethodPost, "/api/v1/zones/hallway/devices", types.ZoneDevicesRequest{Remove: []string{plugIEEE}})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &updated)
	assert.Len(t, updated.Zone.DeviceIEEEs, 2)

	w = env.do(t, http.MethodPost, "/api/v1/zones/hallway/recalibrate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &updated)
	assert.True(t, updated.Zone.Calibrating)

	w = env.do(t, http.MethodDelete, "/api/v1/zones/hallway", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/zones/hallway", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZoneLinksAndSuggestions(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, sensorIEEE, 0x3344, 0x0406)
	env.addDevice(t, lightIEEE, 0x1122)
	env.zones.RecordLinkQuality(sensorIEEE, lightIEEE, -61, 180)

	w := env.do(t, http.MethodGet, "/api/v1/zones/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var links types.LinksResponse
	decodeBody(t, w, &links)
	require.Equal(t, 1, links.Count)
	assert.Equal(t, sensorIEEE, links.Links[0].Source)
	assert.Equal(t, lightIEEE, links.Links[0].Target)
	assert.Equal(t, -61, links.Links[0].RSSI)

	w = env.do(t, http.MethodGet, "/api/v1/zones/suggestions?room=hallway", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sugg types.SuggestionsResponse
	decodeBody(t, w, &sugg)
	assert.Equal(t, "hallway", sugg.Room)
	assert.NotNil(t, sugg.Suggestions)
}

func TestTouchlinkEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/touchlink/scan", types.TouchlinkRequest{Channel: 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// No inter-PAN transport is wired in this build.
	w = env.do(t, http.MethodPost, "/api/v1/touchlink/scan", nil)
	require.Equal(t, http.StatusNotImplemented, w.Code)
	var apiErr types.ErrorResponse
	decodeBody(t, w, &apiErr)
	assert.Equal(t, "unsupported", apiErr.Error)

	w = env.do(t, http.MethodPost, "/api/v1/touchlink/reset", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSpectrumEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.radio.setEnergies(map[int]float64{15: 10})

	w := env.do(t, http.MethodGet, "/api/v1/spectrum", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/spectrum/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var latest types.SpectrumLatestResponse
	decodeBody(t, w, &latest)
	assert.Equal(t, 15, latest.BestChannel)
	assert.Len(t, latest.Channels, 16)
	assert.Equal(t, 10, latest.Channels[15])
	assert.Equal(t, 80, latest.Channels[11])
	assert.Positive(t, latest.Timestamp)

	w = env.do(t, http.MethodGet, "/api/v1/spectrum", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/spectrum/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist types.SpectrumHistoryResponse
	decodeBody(t, w, &hist)
	assert.Equal(t, 24, hist.Hours)
	assert.Equal(t, 16, hist.Count)

	w = env.do(t, http.MethodGet, "/api/v1/spectrum/channels?hours=48", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chans types.SpectrumChannelsResponse
	decodeBody(t, w, &chans)
	assert.Equal(t, 48, chans.Hours)
	assert.Equal(t, 15, chans.BestChannel)
	assert.Equal(t, 10.0, chans.Averages[15])

	env.radio.setConnected(false)
	w = env.do(t, http.MethodPost, "/api/v1/spectrum/scan", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodGet, "/api/v1/stats/packets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pkts types.PacketStatsResponse
	decodeBody(t, w, &pkts)
	assert.Zero(t, pkts.QueueDropped)

	w = env.do(t, http.MethodGet, "/api/v1/stats/fastpath", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fp fastpath.Stats
	decodeBody(t, w, &fp)
	assert.Zero(t, fp.TotalProcessed)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.addDevice(t, lightIEEE, 0x1122)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "zigman_devices")
	assert.Contains(t, body, "zigman_radio_connected")
}
