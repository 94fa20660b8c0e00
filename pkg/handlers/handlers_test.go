package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

const testIEEE = "00124b0012345678"
const coordinatorIEEE = "00124b00c0ffee00"

type sentCommand struct {
	cluster   uint16
	endpoint  uint8
	commandID uint8
	payload   []byte
}

type writtenRecord struct {
	cluster uint16
	record  zcl.AttributeRecord
}

// fakeRadio records radio traffic and serves canned attribute reads.
type fakeRadio struct {
	mu        sync.Mutex
	reads     map[uint16]map[uint16]any // cluster -> attr -> value
	readErr   error
	commands  []sentCommand
	writes    []writtenRecord
	reporting map[uint16][]zcl.ReportConfig
	bound     []uint16
	groupAdds []uint16
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		reads:     make(map[uint16]map[uint16]any),
		reporting: make(map[uint16][]zcl.ReportConfig),
	}
}

func (r *fakeRadio) CoordinatorIEEE() string { return coordinatorIEEE }
func (r *fakeRadio) IsConnected() bool       { return true }

func (r *fakeRadio) ReadAttributes(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, attrs []uint16) (map[uint16]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	out := make(map[uint16]any)
	for _, a := range attrs {
		if v, ok := r.reads[cluster][a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (r *fakeRadio) WriteAttributes(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, records []zcl.AttributeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.writes = append(r.writes, writtenRecord{cluster: cluster, record: rec})
	}
	return nil
}

func (r *fakeRadio) ConfigureReporting(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, configs []zcl.ReportConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reporting[cluster] = append(r.reporting[cluster], configs...)
	return nil
}

func (r *fakeRadio) Bind(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = append(r.bound, cluster)
	return nil
}

func (r *fakeRadio) SendClusterCommand(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, commandID uint8, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, sentCommand{
		cluster:   cluster,
		endpoint:  endpoint,
		commandID: commandID,
		payload:   append([]byte(nil), payload...),
	})
	return nil
}

func (r *fakeRadio) AddToGroup(ctx context.Context, addr device.Address, endpoint uint8, group uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupAdds = append(r.groupAdds, group)
	return nil
}

func (r *fakeRadio) EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error) {
	return nil, nil
}
func (r *fakeRadio) PermitJoin(ctx context.Context, seconds uint8) error  { return nil }
func (r *fakeRadio) Leave(ctx context.Context, addr device.Address) error { return nil }

func (r *fakeRadio) lastCommand(t *testing.T) sentCommand {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.commands)
	return r.commands[len(r.commands)-1]
}

func (r *fakeRadio) setRead(cluster, attr uint16, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.reads[cluster]
	if !ok {
		m = make(map[uint16]any)
		r.reads[cluster] = m
	}
	m[attr] = value
}

// harness builds an engine with the real registry over the fake radio and
// one device exposing the given input clusters on endpoint 1.
func harness(t *testing.T, clusters ...uint16) (*device.Engine, *fakeRadio) {
	t.Helper()
	radio := newFakeRadio()
	eng := device.NewEngine(radio, NewRegistry(), device.NewStatsTracker(), device.NewBroker(), zerolog.Nop())
	eng.AddDevice(testIEEE, 0x1234, device.ProtocolZigbee)
	err := eng.SetEndpoints(testIEEE, []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  zcl.ProfileHomeAutomation,
		InClusters: clusters,
	}})
	require.NoError(t, err)
	return eng, radio
}

func handlerFor(t *testing.T, eng *device.Engine, cluster uint16) device.Handler {
	t.Helper()
	h, ok := eng.HandlerFor(testIEEE, 1, cluster)
	require.True(t, ok, "handler for cluster 0x%04x", cluster)
	return h
}

func stateOf(t *testing.T, eng *device.Engine) map[string]any {
	t.Helper()
	st, ok := eng.DeviceState(testIEEE)
	require.True(t, ok)
	return st
}

func TestOnOffAttributeReport(t *testing.T) {
	eng, _ := harness(t, ClusterOnOff)
	h := handlerFor(t, eng, ClusterOnOff)

	h.AttributeUpdated(0x0000, true, time.Now())
	st := stateOf(t, eng)
	assert.Equal(t, "ON", st["state"])
	assert.Equal(t, true, st["on"])

	h.AttributeUpdated(0x0000, false, time.Now())
	st = stateOf(t, eng)
	assert.Equal(t, "OFF", st["state"])
	assert.Equal(t, false, st["on"])
}

func TestOnOffCommands(t *testing.T) {
	eng, radio := harness(t, ClusterOnOff)
	h := handlerFor(t, eng, ClusterOnOff).(device.OnOffCommands)

	res := h.On(context.Background())
	require.True(t, res.Success)
	cmd := radio.lastCommand(t)
	assert.Equal(t, ClusterOnOff, cmd.cluster)
	assert.Equal(t, uint8(0x01), cmd.commandID)
	assert.Equal(t, "ON", stateOf(t, eng)["state"])

	res = h.Off(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, uint8(0x00), radio.lastCommand(t).commandID)
	assert.Equal(t, "OFF", stateOf(t, eng)["state"])

	res = h.Toggle(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, uint8(0x02), radio.lastCommand(t).commandID)
}

func TestOnOffConfigure(t *testing.T) {
	eng, radio := harness(t, ClusterOnOff)
	h := handlerFor(t, eng, ClusterOnOff)

	require.NoError(t, h.Configure(context.Background()))
	assert.Contains(t, radio.bound, ClusterOnOff)
	require.Len(t, radio.reporting[ClusterOnOff], 1)
	rc := radio.reporting[ClusterOnOff][0]
	assert.Equal(t, uint16(0x0000), rc.AttrID)
	assert.Equal(t, uint16(0), rc.MinInterval)
	assert.Equal(t, uint16(3600), rc.MaxInterval)
}

func TestLevelScaling(t *testing.T) {
	eng, _ := harness(t, ClusterLevel)
	h := handlerFor(t, eng, ClusterLevel)

	h.AttributeUpdated(0x0000, int64(127), time.Now())
	st := stateOf(t, eng)
	assert.EqualValues(t, 127, st["brightness"])
	assert.EqualValues(t, 50, st["level"])

	h.AttributeUpdated(0x0000, int64(254), time.Now())
	st = stateOf(t, eng)
	assert.EqualValues(t, 100, st["level"])
}

func TestLevelMoveToLevelPayload(t *testing.T) {
	eng, radio := harness(t, ClusterLevel)
	h := handlerFor(t, eng, ClusterLevel).(device.LevelCommands)

	res := h.MoveToLevel(context.Background(), 100)
	require.True(t, res.Success)
	cmd := radio.lastCommand(t)
	assert.Equal(t, uint8(0x04), cmd.commandID)
	require.Len(t, cmd.payload, 3)
	assert.Equal(t, uint8(254), cmd.payload[0])

	res = h.MoveToLevel(context.Background(), 101)
	assert.False(t, res.Success)
}

func TestColorCurrentXY(t *testing.T) {
	eng, _ := harness(t, ClusterColor)
	h := handlerFor(t, eng, ClusterColor)

	h.AttributeUpdated(0x0003, int64(32768), time.Now())
	h.AttributeUpdated(0x0004, int64(13107), time.Now())
	st := stateOf(t, eng)
	assert.InDelta(t, 0.5, st["color_x"].(float64), 0.0001)
	assert.InDelta(t, 0.2, st["color_y"].(float64), 0.0001)
}

func TestColorTempKelvinConversion(t *testing.T) {
	eng, radio := harness(t, ClusterColor)
	h := handlerFor(t, eng, ClusterColor).(device.ColorCommands)

	// 4000 K -> 250 mireds
	res := h.MoveToColorTemp(context.Background(), 4000)
	require.True(t, res.Success)
	cmd := radio.lastCommand(t)
	assert.Equal(t, uint8(0x0A), cmd.commandID)
	mireds := int(cmd.payload[0]) | int(cmd.payload[1])<<8
	assert.Equal(t, 250, mireds)
	assert.EqualValues(t, 250, stateOf(t, eng)["color_temp"])

	// Mireds pass through untouched.
	res = h.MoveToColorTemp(context.Background(), 370)
	require.True(t, res.Success)
	cmd = radio.lastCommand(t)
	assert.Equal(t, 370, int(cmd.payload[0])|int(cmd.payload[1])<<8)
}

func TestCoveringInversion(t *testing.T) {
	eng, _ := harness(t, ClusterCovering)
	h := handlerFor(t, eng, ClusterCovering)

	h.AttributeUpdated(0x0008, int64(100), time.Now())
	st := stateOf(t, eng)
	assert.EqualValues(t, 0, st["position"])
	assert.Equal(t, true, st["is_closed"])
	assert.Equal(t, false, st["is_open"])

	h.AttributeUpdated(0x0008, int64(0), time.Now())
	st = stateOf(t, eng)
	assert.EqualValues(t, 100, st["position"])
	assert.Equal(t, false, st["is_closed"])
	assert.Equal(t, true, st["is_open"])

	h.AttributeUpdated(0x0009, int64(40), time.Now())
	assert.EqualValues(t, 40, stateOf(t, eng)["tilt_position"])

	h.AttributeUpdated(0x0000, int64(0x06), time.Now())
	assert.Equal(t, "shutter", stateOf(t, eng)["cover_type"])
}

func TestCoveringSetPositionInvertsWire(t *testing.T) {
	eng, radio := harness(t, ClusterCovering)
	h := handlerFor(t, eng, ClusterCovering).(device.CoverCommands)

	res := h.SetPosition(context.Background(), 25)
	require.True(t, res.Success)
	cmd := radio.lastCommand(t)
	assert.Equal(t, uint8(0x05), cmd.commandID)
	assert.Equal(t, []byte{75}, cmd.payload)

	res = h.Open(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, uint8(0x00), radio.lastCommand(t).commandID)
	assert.Equal(t, false, stateOf(t, eng)["is_closed"])

	res = h.Close(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, true, stateOf(t, eng)["is_closed"])
}

func TestOccupancyLowBit(t *testing.T) {
	eng, _ := harness(t, ClusterOccupancy)
	h := handlerFor(t, eng, ClusterOccupancy)

	h.AttributeUpdated(0x0000, int64(0x03), time.Now())
	st := stateOf(t, eng)
	assert.Equal(t, true, st["occupancy"])
	assert.Equal(t, true, st["motion"])
	assert.Equal(t, true, st["presence"])

	h.AttributeUpdated(0x0000, int64(0x02), time.Now())
	assert.Equal(t, false, stateOf(t, eng)["occupancy"])
}

func TestBatteryHalfPercent(t *testing.T) {
	eng, _ := harness(t, ClusterPowerConfig)
	h := handlerFor(t, eng, ClusterPowerConfig)

	h.AttributeUpdated(0x0021, int64(200), time.Now())
	assert.EqualValues(t, 100, stateOf(t, eng)["battery"])

	h.AttributeUpdated(0x0021, int64(87), time.Now())
	assert.EqualValues(t, 44, stateOf(t, eng)["battery"])
}

func TestTemperatureScaling(t *testing.T) {
	eng, _ := harness(t, ClusterTemperature)
	h := handlerFor(t, eng, ClusterTemperature)

	h.AttributeUpdated(0x0000, int64(2156), time.Now())
	assert.InDelta(t, 21.6, stateOf(t, eng)["temperature"].(float64), 0.001)

	h.AttributeUpdated(0x0000, int64(-500), time.Now())
	assert.InDelta(t, -5.0, stateOf(t, eng)["temperature"].(float64), 0.001)
}

func TestBasicIdentification(t *testing.T) {
	eng, radio := harness(t, ClusterBasic)
	radio.setRead(ClusterBasic, 0x0004, "IKEA of Sweden")
	radio.setRead(ClusterBasic, 0x0005, "TRADFRI bulb E27")
	radio.setRead(ClusterBasic, 0x0007, int64(0x01))
	h := handlerFor(t, eng, ClusterBasic)

	require.NoError(t, h.Configure(context.Background()))

	d, ok := eng.Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, "IKEA of Sweden", d.Manufacturer)
	assert.Equal(t, "TRADFRI bulb E27", d.Model)
	assert.Equal(t, "Mains (Single Phase)", d.PowerSource)
	// Basic is metadata only, never bound.
	assert.NotContains(t, radio.bound, ClusterBasic)
}

func TestTuyaPresenceDataPoints(t *testing.T) {
	eng, _ := harness(t, ClusterTuya)
	h := handlerFor(t, eng, ClusterTuya)

	// status, transaction, DP1 enum=1, DP9 value=250
	payload := []byte{
		0x00, 0x00, 0x01,
		0x01, 0x04, 0x00, 0x01, 0x01,
		0x09, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0xFA,
	}
	h.ClusterCommand(1, 0x02, payload)

	st := stateOf(t, eng)
	assert.Equal(t, true, st["presence"])
	assert.Equal(t, true, st["occupancy"])
	assert.InDelta(t, 2.5, st["distance"].(float64), 0.001)
}

func TestTuyaUnknownDataPointDiagnostics(t *testing.T) {
	eng, _ := harness(t, ClusterTuya)
	h := handlerFor(t, eng, ClusterTuya)

	payload := []byte{
		0x00, 0x00, 0x02,
		0x65, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x2A, // DP101 value=42
	}
	h.ClusterCommand(2, 0x01, payload)
	assert.EqualValues(t, 42, stateOf(t, eng)["dp_101"])
}

func TestLightLinkJoinsReportedGroups(t *testing.T) {
	eng, radio := harness(t, ClusterLightLink)
	h := handlerFor(t, eng, ClusterLightLink)

	// total=2, start=0, count=2, groups 0x4001 and 0x4002
	h.ClusterCommand(0, 0x41, []byte{0x02, 0x00, 0x02, 0x01, 0x40, 0x00, 0x02, 0x40, 0x00})

	radio.mu.Lock()
	defer radio.mu.Unlock()
	assert.Equal(t, []uint16{0x4001, 0x4002}, radio.groupAdds)
}

func TestLightLinkDefaultGroupWhenEmpty(t *testing.T) {
	eng, radio := harness(t, ClusterLightLink)
	h := handlerFor(t, eng, ClusterLightLink)

	h.ClusterCommand(0, 0x41, []byte{0x00, 0x00, 0x00})

	radio.mu.Lock()
	defer radio.mu.Unlock()
	assert.Equal(t, []uint16{0x0000}, radio.groupAdds)
}

func TestRegistryFallsBackToPassthrough(t *testing.T) {
	eng, _ := harness(t, 0x0B05, 0xFC57)
	h := handlerFor(t, eng, 0xFC57)
	assert.Equal(t, "cluster_0xfc57", h.Name())

	h.AttributeUpdated(0x0012, int64(7), time.Now())
	assert.EqualValues(t, 7, stateOf(t, eng)["attr_0x0012"])
}

func TestMultiEndpointScoping(t *testing.T) {
	radio := newFakeRadio()
	eng := device.NewEngine(radio, NewRegistry(), device.NewStatsTracker(), device.NewBroker(), zerolog.Nop())
	eng.AddDevice(testIEEE, 0x1234, device.ProtocolZigbee)
	err := eng.SetEndpoints(testIEEE, []device.EndpointDescriptor{
		{ID: 1, ProfileID: zcl.ProfileHomeAutomation, InClusters: []uint16{ClusterOnOff}},
		{ID: 2, ProfileID: zcl.ProfileHomeAutomation, InClusters: []uint16{ClusterOnOff}},
	})
	require.NoError(t, err)

	h1, ok := eng.HandlerFor(testIEEE, 1, ClusterOnOff)
	require.True(t, ok)
	h2, ok := eng.HandlerFor(testIEEE, 2, ClusterOnOff)
	require.True(t, ok)

	h1.AttributeUpdated(0x0000, true, time.Now())
	h2.AttributeUpdated(0x0000, false, time.Now())

	st := stateOf(t, eng)
	assert.Equal(t, "ON", st["state_1"])
	assert.Equal(t, "ON", st["state"]) // endpoint 1 mirrors unsuffixed
	assert.Equal(t, "OFF", st["state_2"])
}

func TestDiagnosticsLinkQuality(t *testing.T) {
	eng, _ := harness(t, ClusterDiagnostics)
	h := handlerFor(t, eng, ClusterDiagnostics)

	h.AttributeUpdated(0x011C, int64(196), time.Now())
	assert.EqualValues(t, 196, stateOf(t, eng)["link_quality"])
}
