package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Measurement clusters share the measured value attribute ID.
const attrMeasuredValue uint16 = 0x0000

// measurement is the shared shape of the simple measurement handlers: one
// reported attribute, one scaled state key.
type measurement struct {
	device.BaseHandler

	name      string
	key       string
	unit      string
	class     string
	dataType  uint8
	divisor   float64
	precision int
	minInt    uint16
	maxInt    uint16
	change    uint32
}

func (h *measurement) Name() string { return h.name }

func (h *measurement) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrMeasuredValue {
		return
	}
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	v := raw / h.divisor
	var out any
	switch h.precision {
	case 0:
		out = int(v)
	case 1:
		out = round1(v)
	default:
		out = round3(v)
	}
	h.Emit(map[string]any{h.key: out})
}

func (h *measurement) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:           attrMeasuredValue,
		DataType:         h.dataType,
		MinInterval:      h.minInt,
		MaxInterval:      h.maxInt,
		ReportableChange: h.change,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *measurement) Poll() []uint16 { return []uint16{attrMeasuredValue} }

func (h *measurement) MaxReportInterval() uint16 { return h.maxInt }

func (h *measurement) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, h.key)
	cfg := map[string]any{
		"name":           displayName(h.Binding, h.class),
		"device_class":   h.key,
		"value_template": valueTemplate(key),
	}
	if h.unit != "" {
		cfg["unit_of_measurement"] = h.unit
	}
	return []device.DiscoveryConfig{{Component: "sensor", ObjectID: key, Config: cfg}}
}

func newTemperature(b *device.Binding) device.Handler {
	return &measurement{
		BaseHandler: device.BaseHandler{Binding: b},
		name:        "temperature",
		key:         "temperature",
		unit:        "°C",
		class:       "Temperature",
		dataType:    zcl.TypeInt16,
		divisor:     100,
		precision:   1,
		minInt:      30,
		maxInt:      300,
		change:      10,
	}
}

func newHumidity(b *device.Binding) device.Handler {
	return &measurement{
		BaseHandler: device.BaseHandler{Binding: b},
		name:        "humidity",
		key:         "humidity",
		unit:        "%",
		class:       "Humidity",
		dataType:    zcl.TypeUint16,
		divisor:     100,
		precision:   1,
		minInt:      30,
		maxInt:      300,
		change:      25,
	}
}

func newIlluminance(b *device.Binding) device.Handler {
	return &measurement{
		BaseHandler: device.BaseHandler{Binding: b},
		name:        "illuminance",
		key:         "illuminance",
		unit:        "lx",
		class:       "Illuminance",
		dataType:    zcl.TypeUint16,
		divisor:     1,
		precision:   0,
		minInt:      10,
		maxInt:      300,
		change:      500,
	}
}

// Occupancy handles PIR occupancy sensing (0x0406). The low bit of the
// bitmap is the only one defined.
type Occupancy struct {
	device.BaseHandler
}

func newOccupancy(b *device.Binding) device.Handler {
	return &Occupancy{device.BaseHandler{Binding: b}}
}

func (h *Occupancy) Name() string { return "occupancy" }

func (h *Occupancy) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrMeasuredValue {
		return
	}
	raw, ok := asInt(value)
	if !ok {
		if b, okb := asBool(value); okb {
			raw = 0
			if b {
				raw = 1
			}
			ok = true
		}
	}
	if !ok {
		return
	}
	occupied := raw&0x01 != 0
	h.Emit(map[string]any{
		"occupancy": occupied,
		"motion":    occupied,
		"presence":  occupied,
	})
}

func (h *Occupancy) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:      attrMeasuredValue,
		DataType:    zcl.TypeBitmap8,
		MinInterval: 0,
		MaxInterval: 300,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Occupancy) Poll() []uint16 { return []uint16{attrMeasuredValue} }

func (h *Occupancy) MaxReportInterval() uint16 { return 300 }

func (h *Occupancy) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, "occupancy")
	return []device.DiscoveryConfig{{
		Component: "binary_sensor",
		ObjectID:  key,
		Config: map[string]any{
			"name":           displayName(h.Binding, "Occupancy"),
			"device_class":   "occupancy",
			"value_template": valueTemplate(key),
			"payload_on":     true,
			"payload_off":    false,
		},
	}}
}

const attrBatteryPercent uint16 = 0x0021

// PowerConfig handles the Power Configuration cluster (0x0001). Battery
// percentage is reported in half-percent steps.
type PowerConfig struct {
	device.BaseHandler
}

func newPowerConfig(b *device.Binding) device.Handler {
	return &PowerConfig{device.BaseHandler{Binding: b}}
}

func (h *PowerConfig) Name() string { return "power_config" }

func (h *PowerConfig) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrBatteryPercent {
		return
	}
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	pct := int(raw/2 + 0.5)
	if pct > 100 {
		pct = 100
	}
	h.Emit(map[string]any{"battery": pct})
}

func (h *PowerConfig) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:           attrBatteryPercent,
		DataType:         zcl.TypeUint8,
		MinInterval:      3600,
		MaxInterval:      43200,
		ReportableChange: 2,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *PowerConfig) Poll() []uint16 { return []uint16{attrBatteryPercent} }

func (h *PowerConfig) MaxReportInterval() uint16 { return 43200 }

func (h *PowerConfig) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, "battery")
	return []device.DiscoveryConfig{{
		Component: "sensor",
		ObjectID:  key,
		Config: map[string]any{
			"name":                displayName(h.Binding, "Battery"),
			"device_class":        "battery",
			"unit_of_measurement": "%",
			"value_template":      valueTemplate(key),
		},
	}}
}

const attrLastMessageLQI uint16 = 0x011C

// Diagnostics handles the Diagnostics cluster (0x0B05). Only the last
// message LQI is surfaced; the zones module configures aggressive reporting
// on it when a device participates in presence zones.
type Diagnostics struct {
	device.BaseHandler
}

func newDiagnostics(b *device.Binding) device.Handler {
	return &Diagnostics{device.BaseHandler{Binding: b}}
}

func (h *Diagnostics) Name() string { return "diagnostics" }

func (h *Diagnostics) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrLastMessageLQI {
		return
	}
	if raw, ok := asInt(value); ok {
		h.Emit(map[string]any{"link_quality": int(raw)})
	}
}

func (h *Diagnostics) Poll() []uint16 { return []uint16{attrLastMessageLQI} }
