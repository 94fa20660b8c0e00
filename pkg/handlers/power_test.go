package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElectricalDefaultsBeforeConfigure(t *testing.T) {
	eng, _ := harness(t, ClusterElectrical)
	h := handlerFor(t, eng, ClusterElectrical)

	h.AttributeUpdated(0x050B, int64(235), time.Now())
	assert.InDelta(t, 235.0, stateOf(t, eng)["power"].(float64), 0.001)
}

func TestElectricalScalingFromConfigure(t *testing.T) {
	eng, radio := harness(t, ClusterElectrical)
	radio.setRead(ClusterElectrical, 0x0600, int64(1))  // voltage multiplier
	radio.setRead(ClusterElectrical, 0x0601, int64(10)) // voltage divisor
	radio.setRead(ClusterElectrical, 0x0602, int64(1))  // current multiplier
	radio.setRead(ClusterElectrical, 0x0603, int64(1000))
	radio.setRead(ClusterElectrical, 0x0604, int64(1)) // power multiplier
	radio.setRead(ClusterElectrical, 0x0605, int64(10))
	h := handlerFor(t, eng, ClusterElectrical)

	require.NoError(t, h.Configure(context.Background()))

	h.AttributeUpdated(0x050B, int64(2345), time.Now())
	h.AttributeUpdated(0x0505, int64(2350), time.Now())
	h.AttributeUpdated(0x0508, int64(1234), time.Now())

	st := stateOf(t, eng)
	assert.InDelta(t, 234.5, st["power"].(float64), 0.001)
	assert.InDelta(t, 235.0, st["voltage"].(float64), 0.001)
	assert.InDelta(t, 1.234, st["current"].(float64), 0.0001)
}

func TestElectricalZeroDivisorKeepsIdentity(t *testing.T) {
	eng, _ := harness(t, ClusterElectrical)
	h := handlerFor(t, eng, ClusterElectrical)

	h.AttributeUpdated(0x0605, int64(0), time.Now())
	h.AttributeUpdated(0x050B, int64(100), time.Now())
	assert.InDelta(t, 100.0, stateOf(t, eng)["power"].(float64), 0.001)
}

func TestElectricalReportConfigs(t *testing.T) {
	eng, radio := harness(t, ClusterElectrical)
	h := handlerFor(t, eng, ClusterElectrical)

	require.NoError(t, h.Configure(context.Background()))

	configs := radio.reporting[ClusterElectrical]
	require.Len(t, configs, 3)
	assert.Equal(t, uint16(0x050B), configs[0].AttrID)
	assert.Equal(t, uint16(10), configs[0].MinInterval)
	assert.Equal(t, uint16(60), configs[0].MaxInterval)
	assert.Equal(t, uint32(10), configs[0].ReportableChange)
	assert.Equal(t, uint16(0x0505), configs[1].AttrID)
	assert.Equal(t, uint16(600), configs[1].MaxInterval)
	assert.Equal(t, uint16(0x0508), configs[2].AttrID)
	assert.Equal(t, uint32(100), configs[2].ReportableChange)
}

func TestMeteringScaling(t *testing.T) {
	eng, _ := harness(t, ClusterMetering)
	h := handlerFor(t, eng, ClusterMetering)

	h.AttributeUpdated(0x0301, int64(1), time.Now())
	h.AttributeUpdated(0x0302, int64(1000), time.Now())
	h.AttributeUpdated(0x0000, int64(12345), time.Now())
	h.AttributeUpdated(0x0400, int64(1500), time.Now())

	st := stateOf(t, eng)
	assert.InDelta(t, 12.345, st["energy"].(float64), 0.0001)
	assert.InDelta(t, 1.5, st["power_demand"].(float64), 0.001)
}

func TestMeteringReportConfigs(t *testing.T) {
	eng, radio := harness(t, ClusterMetering)
	h := handlerFor(t, eng, ClusterMetering)

	require.NoError(t, h.Configure(context.Background()))

	configs := radio.reporting[ClusterMetering]
	require.Len(t, configs, 2)
	assert.Equal(t, uint16(0x0400), configs[0].AttrID)
	assert.Equal(t, uint16(30), configs[0].MinInterval)
	assert.Equal(t, uint16(300), configs[0].MaxInterval)
	assert.Equal(t, uint16(0x0000), configs[1].AttrID)
	assert.Equal(t, uint16(3600), configs[1].MaxInterval)
}
