package zones

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Live link-quality stats need frequent traffic. Telemetry clusters are
// preferred because reconfiguring them has no functional side effects; one
// success is enough. Functional clusters are the fallback and are all
// configured, since any of them may be the only chatty one.
type reportTarget struct {
	cluster  uint16
	attr     uint16
	dataType uint8
}

var telemetryTargets = []reportTarget{
	{0x0B04, 0x050B, zcl.TypeInt16}, // Electrical Measurement: Active Power
	{0x0B05, 0x011C, zcl.TypeUint8}, // Diagnostics: Last Message LQI
}

var functionalTargets = []reportTarget{
	{0x0006, 0x0000, zcl.TypeBool},   // OnOff: OnOff
	{0x0008, 0x0000, zcl.TypeUint8},  // Level: CurrentLevel
	{0x0300, 0x0003, zcl.TypeUint16}, // Color: CurrentX
	{0x0000, 0x0001, zcl.TypeUint8},  // Basic: ApplicationVersion
	{0x0003, 0x0000, zcl.TypeUint16}, // Identify: IdentifyTime
}

// Aggressive cadence: 5 s heartbeat.
const (
	aggressiveMinInterval = 1
	aggressiveMaxInterval = 5
)

type baselineSpec struct {
	cluster  uint16
	attr     uint16
	dataType uint8
	min      uint16
	max      uint16
	change   uint32
}

var baselineSpecs = []baselineSpec{
	{0x0B04, 0x050B, zcl.TypeInt16, 30, 300, 10},
	{0x0B05, 0x011C, zcl.TypeUint8, 60, 300, 5},
	{0x0006, 0x0000, zcl.TypeBool, 0, 3600, 0},
	{0x0008, 0x0000, zcl.TypeUint8, 1, 300, 5},
	{0x0300, 0x0003, zcl.TypeUint16, 1, 300, 1},
	{0x0000, 0x0001, zcl.TypeUint8, 0, 0xFFFF, 0},
	{0x0003, 0x0000, zcl.TypeUint16, 0, 0xFFFF, 0},
}

// ReportingResult summarises an aggressive-reporting pass.
type ReportingResult struct {
	Configured int `json:"configured"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// RestoreResult summarises a baseline restore pass.
type RestoreResult struct {
	Restored int `json:"restored"`
	Failed   int `json:"failed"`
}

// ConfigureReporting pushes the aggressive reporting cadence onto every
// mains-powered device in the list. End devices sleep through the heartbeat
// and are skipped.
func (m *Manager) ConfigureReporting(ctx context.Context, ieees []string) ReportingResult {
	var res ReportingResult
	for _, ieee := range ieees {
		dev, ok := m.devices.Device(ieee)
		if !ok {
			continue
		}
		if strings.EqualFold(dev.PowerSource, "battery") {
			m.log.Debug().Str("ieee", ieee).Msg("skipping end device for zone reporting")
			res.Skipped++
			continue
		}
		if m.applyReporting(ctx, dev, telemetryTargets, true) {
			res.Configured++
			continue
		}
		if m.applyReporting(ctx, dev, functionalTargets, false) {
			res.Configured++
			continue
		}
		m.log.Warn().Str("ieee", ieee).Msg("no suitable clusters for link-quality reporting")
		res.Failed++
	}
	m.log.Info().
		Int("configured", res.Configured).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("zone reporting pass finished")
	return res
}

func (m *Manager) applyReporting(ctx context.Context, dev device.Device, targets []reportTarget, stopOnFirst bool) bool {
	addr := device.Address{IEEE: dev.IEEE, NWK: dev.NWK}
	success := false
	for _, epID := range sortedEndpoints(dev.Endpoints) {
		ep := dev.Endpoints[epID]
		for _, target := range targets {
			if !hasCluster(ep, target.cluster) {
				continue
			}
			if err := m.radio.Bind(ctx, addr, epID, target.cluster); err != nil {
				m.log.Debug().Err(err).Str("ieee", dev.IEEE).
					Str("cluster", fmt.Sprintf("0x%04X", target.cluster)).Msg("bind failed")
				continue
			}
			cfg := zcl.ReportConfig{
				AttrID:      target.attr,
				DataType:    target.dataType,
				MinInterval: aggressiveMinInterval,
				MaxInterval: aggressiveMaxInterval,
			}
			if err := m.radio.ConfigureReporting(ctx, addr, epID, target.cluster, []zcl.ReportConfig{cfg}); err != nil {
				m.log.Debug().Err(err).Str("ieee", dev.IEEE).
					Str("cluster", fmt.Sprintf("0x%04X", target.cluster)).Msg("reporting config failed")
				continue
			}
			m.log.Info().Str("ieee", dev.IEEE).Uint8("endpoint", epID).
				Str("cluster", fmt.Sprintf("0x%04X", target.cluster)).Msg("link-quality reporting configured")
			success = true
			if stopOnFirst {
				return true
			}
		}
	}
	return success
}

// RestoreReporting puts standard reporting intervals back on the listed
// devices. Per-cluster failures are expected (not every device implements
// every cluster) and only logged.
func (m *Manager) RestoreReporting(ctx context.Context, ieees []string) RestoreResult {
	var res RestoreResult
	for _, ieee := range ieees {
		dev, ok := m.devices.Device(ieee)
		if !ok {
			continue
		}
		m.restoreBaseline(ctx, dev)
		res.Restored++
		m.log.Info().Str("ieee", ieee).Msg("baseline reporting restored")
	}
	return res
}

func (m *Manager) restoreBaseline(ctx context.Context, dev device.Device) {
	addr := device.Address{IEEE: dev.IEEE, NWK: dev.NWK}
	for _, epID := range sortedEndpoints(dev.Endpoints) {
		ep := dev.Endpoints[epID]
		for _, spec := range baselineSpecs {
			if !hasCluster(ep, spec.cluster) {
				continue
			}
			cfg := zcl.ReportConfig{
				AttrID:           spec.attr,
				DataType:         spec.dataType,
				MinInterval:      spec.min,
				MaxInterval:      spec.max,
				ReportableChange: spec.change,
			}
			if err := m.radio.ConfigureReporting(ctx, addr, epID, spec.cluster, []zcl.ReportConfig{cfg}); err != nil {
				m.log.Debug().Err(err).Str("ieee", dev.IEEE).
					Str("cluster", fmt.Sprintf("0x%04X", spec.cluster)).Msg("baseline restore failed")
			}
		}
	}
}

func (m *Manager) configureZoneReporting(ieees []string) {
	if m.radio == nil {
		return
	}
	m.ConfigureReporting(context.Background(), ieees)
}

func (m *Manager) restoreZoneReporting(ieees []string) {
	if m.radio == nil {
		return
	}
	m.RestoreReporting(context.Background(), ieees)
}

func hasCluster(ep *device.Endpoint, cluster uint16) bool {
	if ep == nil {
		return false
	}
	for _, c := range ep.InClusters {
		if c == cluster {
			return true
		}
	}
	for _, c := range ep.OutClusters {
		if c == cluster {
			return true
		}
	}
	return false
}

func sortedEndpoints(eps map[uint8]*device.Endpoint) []uint8 {
	out := make([]uint8, 0, len(eps))
	for id := range eps {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
