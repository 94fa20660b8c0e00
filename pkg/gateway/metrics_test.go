package gateway

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/automation"
)

func newTestCollector(t *testing.T, env *testEnv) *Collector {
	t.Helper()
	rules := automation.NewEngine(
		filepath.Join(t.TempDir(), "automations.json"),
		NewDirectory(env.engine, nil),
		env.events,
		zerolog.Nop(),
	)
	return NewCollector(env.engine, env.gw, env.gw.decoder, rules, nil)
}

func TestCollectorLints(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	c := newTestCollector(t, env)

	problems, err := testutil.CollectAndLint(c)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCollectorGaugesReflectRegistry(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	c := newTestCollector(t, env)

	expected := `
# HELP zigman_devices Registered Zigbee devices.
# TYPE zigman_devices gauge
zigman_devices 1
# HELP zigman_radio_connected Whether the coordinator serial link is up.
# TYPE zigman_radio_connected gauge
zigman_radio_connected 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"zigman_devices", "zigman_radio_connected"))
}

func TestCollectorCountsPackets(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	c := newTestCollector(t, env)

	env.gw.process(zigbeePacket(0x0006, onOffReport))

	expected := `
# HELP zigman_device_packets_total Packets per device and direction.
# TYPE zigman_device_packets_total counter
zigman_device_packets_total{direction="rx",ieee="00124b0012345678"} 1
zigman_device_packets_total{direction="tx",ieee="00124b0012345678"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"zigman_device_packets_total"))

	// The frame went through the fast path as well.
	fp := env.gw.decoder.Stats()
	assert.Equal(t, uint64(1), fp.TotalProcessed)
}

func TestCollectorSkipsNilSources(t *testing.T) {
	env := newTestEnv(t)
	c := NewCollector(env.engine, env.gw, env.gw.decoder, nil, nil)

	count := testutil.CollectAndCount(c)
	assert.Greater(t, count, 0)
}
