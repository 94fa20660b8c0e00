package handlers

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// IAS Zone cluster (0x0500) attribute IDs.
const (
	attrZoneState  uint16 = 0x0000
	attrZoneType   uint16 = 0x0001
	attrZoneStatus uint16 = 0x0002
	attrCIEAddress uint16 = 0x0010
)

// IAS Zone cluster commands. Status change notification and enroll request
// arrive from the device; the enroll response goes back out.
const (
	cmdZoneStatusChange  uint8 = 0x00
	cmdZoneEnrollRequest uint8 = 0x01
	cmdZoneEnrollRsp     uint8 = 0x00
)

// Zone status bitmap.
const (
	zoneAlarm1     uint16 = 0x0001
	zoneAlarm2     uint16 = 0x0002
	zoneTamper     uint16 = 0x0004
	zoneBatteryLow uint16 = 0x0008
	zoneTrouble    uint16 = 0x0040
)

// Zone types this gateway maps to friendly sensor semantics.
const (
	zoneTypeStandardCIE   int64 = 0x0000
	zoneTypeMotion        int64 = 0x000D
	zoneTypeContact       int64 = 0x0015
	zoneTypeFire          int64 = 0x0028
	zoneTypeWater         int64 = 0x002A
	zoneTypeCO            int64 = 0x002B
	zoneTypeVibration     int64 = 0x002C
	zoneTypeRemoteControl int64 = 0x002D
)

var zoneTypeNames = map[int64]string{
	zoneTypeStandardCIE:   "standard_cie",
	zoneTypeMotion:        "motion_sensor",
	zoneTypeContact:       "contact_switch",
	zoneTypeFire:          "fire_sensor",
	zoneTypeWater:         "water_sensor",
	zoneTypeCO:            "co_sensor",
	zoneTypeVibration:     "vibration_sensor",
	zoneTypeRemoteControl: "remote_control",
	0x010F:                "key_fob",
	0x0115:                "keypad",
	0x021D:                "standard_warning",
	0x0225:                "glass_break",
	0x0226:                "security_repeater",
}

// IASZone handles security sensors: contact, motion, water leak, smoke, CO
// and vibration. The device pushes zone status change notifications once the
// coordinator is enrolled as its CIE.
type IASZone struct {
	device.BaseHandler

	mu       sync.Mutex
	zoneType int64
}

func newIASZone(b *device.Binding) device.Handler {
	return &IASZone{
		BaseHandler: device.BaseHandler{Binding: b},
		zoneType:    -1,
	}
}

func (h *IASZone) Name() string { return "ias_zone" }

func (h *IASZone) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	switch attrID {
	case attrZoneStatus:
		if raw, ok := asInt(value); ok {
			h.applyStatus(uint16(raw))
		}
	case attrZoneType:
		raw, ok := asInt(value)
		if !ok {
			return
		}
		h.mu.Lock()
		h.zoneType = raw
		h.mu.Unlock()
		name, known := zoneTypeNames[raw]
		if !known {
			name = fmt.Sprintf("unknown_0x%04x", raw)
		}
		h.Emit(map[string]any{"zone_type": name})
		h.Log.Info().Str("zone_type", name).Msg("zone type identified")
	case attrZoneState:
		if raw, ok := asInt(value); ok {
			h.Emit(map[string]any{"enrolled": raw == 1})
		}
	}
}

func (h *IASZone) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	switch commandID {
	case cmdZoneStatusChange:
		// Extended status, zone ID and delay may trail; only the first
		// two bytes carry the bitmap.
		if len(payload) < 2 {
			h.Log.Warn().Int("len", len(payload)).Msg("short zone status notification")
			return
		}
		h.applyStatus(binary.LittleEndian.Uint16(payload))
	case cmdZoneEnrollRequest:
		h.Log.Info().Msg("zone enroll request, sending response")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Response code 0x00 (success), zone ID 0.
		if err := h.Client.Command(ctx, cmdZoneEnrollRsp, []byte{0x00, 0x00}); err != nil {
			h.Log.Warn().Err(err).Msg("zone enroll response failed")
		}
	}
}

// applyStatus maps the raw zone status bitmap onto the sensor semantics of
// the learned zone type.
func (h *IASZone) applyStatus(status uint16) {
	alarm1 := status&zoneAlarm1 != 0
	alarm2 := status&zoneAlarm2 != 0
	alarm := alarm1 || alarm2

	h.mu.Lock()
	zoneType := h.zoneType
	h.mu.Unlock()

	state := map[string]any{
		"zone_status": int(status),
		"tamper":      status&zoneTamper != 0,
		"battery_low": status&zoneBatteryLow != 0,
		"trouble":     status&zoneTrouble != 0,
	}

	switch zoneType {
	case zoneTypeContact:
		state["contact"] = !alarm1
		state["is_open"] = alarm1
	case zoneTypeMotion, zoneTypeStandardCIE:
		state["occupancy"] = alarm1
		state["motion"] = alarm1
		state["presence"] = alarm1
	case zoneTypeWater:
		state["water_leak"] = alarm1
	case zoneTypeFire:
		state["smoke"] = alarm1
	case zoneTypeCO:
		state["co_detected"] = alarm1
	case zoneTypeVibration:
		state["vibration"] = alarm1
	default:
		state["alarm"] = alarm
		state["occupancy"] = alarm1
		state["motion"] = alarm1
	}

	h.Emit(state)
}

// Configure enrolls the coordinator as the zone's CIE and learns the zone
// type. Notifications flow without reporting configuration afterwards.
func (h *IASZone) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	cie, err := device.IEEEWireBytes(h.Client.CoordinatorIEEE())
	if err != nil {
		return fmt.Errorf("coordinator ieee: %w", err)
	}
	err = h.Client.Write(ctx, zcl.AttributeRecord{
		AttrID:   attrCIEAddress,
		DataType: zcl.TypeEUI64,
		Value:    cie,
	})
	if err != nil {
		return fmt.Errorf("write cie address: %w", err)
	}

	vals, err := h.Client.Read(ctx, attrZoneType, attrZoneState)
	if err != nil {
		h.Log.Warn().Err(err).Msg("reading zone type failed")
		return nil
	}
	for id, v := range vals {
		h.AttributeUpdated(id, v, time.Now())
	}
	return nil
}

func (h *IASZone) Poll() []uint16 { return []uint16{attrZoneStatus} }

func (h *IASZone) DiscoveryConfigs() []device.DiscoveryConfig {
	h.mu.Lock()
	zoneType := h.zoneType
	h.mu.Unlock()

	var key, name, class string
	switch zoneType {
	case zoneTypeContact:
		key, name, class = "contact", "Contact", "door"
	case zoneTypeWater:
		key, name, class = "water_leak", "Water Leak", "moisture"
	case zoneTypeFire:
		key, name, class = "smoke", "Smoke", "smoke"
	case zoneTypeCO:
		key, name, class = "co_detected", "Carbon Monoxide", "carbon_monoxide"
	case zoneTypeVibration:
		key, name, class = "vibration", "Vibration", "vibration"
	default:
		key, name, class = "occupancy", "Occupancy", "occupancy"
	}

	scoped := objectID(h.Binding, key)
	cfg := map[string]any{
		"name":           displayName(h.Binding, name),
		"device_class":   class,
		"value_template": valueTemplate(scoped),
		"payload_on":     true,
		"payload_off":    false,
	}
	if zoneType == zoneTypeContact {
		// Contact reads true when closed; HA doors report "on" when open.
		cfg["value_template"] = valueTemplate(objectID(h.Binding, "is_open"))
		scoped = objectID(h.Binding, "is_open")
		cfg["name"] = displayName(h.Binding, "Contact")
	}
	return []device.DiscoveryConfig{{
		Component: "binary_sensor",
		ObjectID:  scoped,
		Config:    cfg,
	}}
}
