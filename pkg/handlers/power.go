package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Electrical Measurement cluster (0x0B04) attribute IDs.
const (
	attrActivePower       uint16 = 0x050B
	attrRMSVoltage        uint16 = 0x0505
	attrRMSCurrent        uint16 = 0x0508
	attrACVoltMultiplier  uint16 = 0x0600
	attrACVoltDivisor     uint16 = 0x0601
	attrACCurrMultiplier  uint16 = 0x0602
	attrACCurrDivisor     uint16 = 0x0603
	attrACPowerMultiplier uint16 = 0x0604
	attrACPowerDivisor    uint16 = 0x0605
)

// Electrical handles mains measurement plugs and relays. Raw readings are
// scaled by the per-device multiplier/divisor pairs read once at configure
// time; missing scaling attributes leave the identity defaults.
type Electrical struct {
	device.BaseHandler

	mu       sync.Mutex
	voltMult float64
	voltDiv  float64
	currMult float64
	currDiv  float64
	powMult  float64
	powDiv   float64
}

func newElectrical(b *device.Binding) device.Handler {
	h := &Electrical{BaseHandler: device.BaseHandler{Binding: b}}
	h.voltMult, h.voltDiv = 1, 1
	h.currMult, h.currDiv = 1, 1
	h.powMult, h.powDiv = 1, 1
	return h
}

func (h *Electrical) Name() string { return "electrical_measurement" }

func (h *Electrical) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch attrID {
	case attrActivePower:
		h.Emit(map[string]any{"power": round1(raw * h.powMult / h.powDiv)})
	case attrRMSVoltage:
		h.Emit(map[string]any{"voltage": round1(raw * h.voltMult / h.voltDiv)})
	case attrRMSCurrent:
		h.Emit(map[string]any{"current": round3(raw * h.currMult / h.currDiv)})
	case attrACPowerMultiplier:
		h.powMult = nonZero(raw)
	case attrACPowerDivisor:
		h.powDiv = nonZero(raw)
	case attrACVoltMultiplier:
		h.voltMult = nonZero(raw)
	case attrACVoltDivisor:
		h.voltDiv = nonZero(raw)
	case attrACCurrMultiplier:
		h.currMult = nonZero(raw)
	case attrACCurrDivisor:
		h.currDiv = nonZero(raw)
	}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func (h *Electrical) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	// Scaling attributes are static; a failed read keeps the identity
	// defaults rather than degrading the handler.
	vals, err := h.Client.Read(ctx,
		attrACVoltMultiplier, attrACVoltDivisor,
		attrACCurrMultiplier, attrACCurrDivisor,
		attrACPowerMultiplier, attrACPowerDivisor,
	)
	if err != nil {
		h.Log.Warn().Err(err).Msg("reading measurement scaling failed, using defaults")
	} else {
		for id, v := range vals {
			h.AttributeUpdated(id, v, time.Now())
		}
		h.mu.Lock()
		h.Log.Info().
			Float64("volt_mult", h.voltMult).Float64("volt_div", h.voltDiv).
			Float64("curr_mult", h.currMult).Float64("curr_div", h.currDiv).
			Float64("pow_mult", h.powMult).Float64("pow_div", h.powDiv).
			Msg("measurement scaling")
		h.mu.Unlock()
	}

	err = h.Client.ConfigureReporting(ctx,
		zcl.ReportConfig{AttrID: attrActivePower, DataType: zcl.TypeInt16, MinInterval: 10, MaxInterval: 60, ReportableChange: 10},
		zcl.ReportConfig{AttrID: attrRMSVoltage, DataType: zcl.TypeUint16, MinInterval: 60, MaxInterval: 600, ReportableChange: 5},
		zcl.ReportConfig{AttrID: attrRMSCurrent, DataType: zcl.TypeUint16, MinInterval: 10, MaxInterval: 60, ReportableChange: 100},
	)
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Electrical) Poll() []uint16 {
	return []uint16{attrActivePower, attrRMSVoltage, attrRMSCurrent}
}

func (h *Electrical) MaxReportInterval() uint16 { return 600 }

func (h *Electrical) DiscoveryConfigs() []device.DiscoveryConfig {
	power := objectID(h.Binding, "power")
	voltage := objectID(h.Binding, "voltage")
	current := objectID(h.Binding, "current")
	return []device.DiscoveryConfig{
		{Component: "sensor", ObjectID: power, Config: map[string]any{
			"name": displayName(h.Binding, "Power"), "device_class": "power",
			"unit_of_measurement": "W", "value_template": valueTemplate(power),
		}},
		{Component: "sensor", ObjectID: voltage, Config: map[string]any{
			"name": displayName(h.Binding, "Voltage"), "device_class": "voltage",
			"unit_of_measurement": "V", "value_template": valueTemplate(voltage),
		}},
		{Component: "sensor", ObjectID: current, Config: map[string]any{
			"name": displayName(h.Binding, "Current"), "device_class": "current",
			"unit_of_measurement": "A", "value_template": valueTemplate(current),
		}},
	}
}

// Metering cluster (0x0702) attribute IDs.
const (
	attrSummationDelivered uint16 = 0x0000
	attrMeterMultiplier    uint16 = 0x0301
	attrMeterDivisor       uint16 = 0x0302
	attrInstantDemand      uint16 = 0x0400
)

// Metering handles cumulative energy meters. One multiplier/divisor pair
// scales both summation and demand.
type Metering struct {
	device.BaseHandler

	mu         sync.Mutex
	multiplier float64
	divisor    float64
}

func newMetering(b *device.Binding) device.Handler {
	return &Metering{
		BaseHandler: device.BaseHandler{Binding: b},
		multiplier:  1,
		divisor:     1,
	}
}

func (h *Metering) Name() string { return "metering" }

func (h *Metering) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch attrID {
	case attrSummationDelivered:
		h.Emit(map[string]any{"energy": round3(raw * h.multiplier / h.divisor)})
	case attrInstantDemand:
		h.Emit(map[string]any{"power_demand": round1(raw * h.multiplier / h.divisor)})
	case attrMeterMultiplier:
		h.multiplier = nonZero(raw)
	case attrMeterDivisor:
		h.divisor = nonZero(raw)
	}
}

func (h *Metering) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	vals, err := h.Client.Read(ctx, attrMeterMultiplier, attrMeterDivisor)
	if err != nil {
		h.Log.Warn().Err(err).Msg("reading metering scaling failed, using defaults")
	} else {
		for id, v := range vals {
			h.AttributeUpdated(id, v, time.Now())
		}
	}

	err = h.Client.ConfigureReporting(ctx,
		zcl.ReportConfig{AttrID: attrInstantDemand, DataType: zcl.TypeInt24, MinInterval: 30, MaxInterval: 300, ReportableChange: 10},
		zcl.ReportConfig{AttrID: attrSummationDelivered, DataType: zcl.TypeUint48, MinInterval: 300, MaxInterval: 3600, ReportableChange: 100},
	)
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Metering) Poll() []uint16 {
	return []uint16{attrSummationDelivered, attrInstantDemand}
}

func (h *Metering) MaxReportInterval() uint16 { return 3600 }

func (h *Metering) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, "energy")
	return []device.DiscoveryConfig{{
		Component: "sensor",
		ObjectID:  key,
		Config: map[string]any{
			"name":                displayName(h.Binding, "Energy"),
			"device_class":        "energy",
			"unit_of_measurement": "kWh",
			"state_class":         "total_increasing",
			"value_template":      valueTemplate(key),
		},
	}}
}
