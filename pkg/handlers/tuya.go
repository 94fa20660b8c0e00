package handlers

import (
	"fmt"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Well-known Tuya data points for mmWave presence radars.
const (
	dpPresenceState uint8 = 1
	dpTargetDist    uint8 = 9
	dpPresenceBool  uint8 = 104
)

// Tuya handles the manufacturer tunnel cluster (0xEF00) used by Tuya mmWave
// presence sensors and similar devices. State arrives as DP records inside
// cluster commands; there is no attribute reporting to configure.
type Tuya struct {
	device.BaseHandler
}

func newTuya(b *device.Binding) device.Handler {
	return &Tuya{device.BaseHandler{Binding: b}}
}

func (h *Tuya) Name() string { return "tuya" }

func (h *Tuya) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	if !zcl.TuyaCarriesDataPoints(commandID) {
		return
	}
	dps := zcl.ParseTuyaDataPoints(payload)
	if len(dps) == 0 {
		return
	}

	state := make(map[string]any, len(dps)*2)
	for _, dp := range dps {
		applyTuyaDataPoint(state, dp)
	}
	h.Emit(state)
}

// applyTuyaDataPoint folds one DP record into the state map. DP 1 is the
// presence enum (0 none, 1 presence, 2 moving), DP 104 a plain presence
// bool, DP 9 the measured target distance in cm.
func applyTuyaDataPoint(state map[string]any, dp zcl.TuyaDataPoint) {
	switch dp.ID {
	case dpPresenceState:
		var present bool
		switch dp.Type {
		case zcl.TuyaTypeEnum:
			present = dp.Enum() > 0
		case zcl.TuyaTypeBool:
			present = dp.Bool()
		default:
			return
		}
		state["presence"] = present
		state["occupancy"] = present
		state["state"] = present
	case dpPresenceBool:
		if dp.Type != zcl.TuyaTypeBool {
			return
		}
		present := dp.Bool()
		state["presence"] = present
		state["occupancy"] = present
	case dpTargetDist:
		if dp.Type != zcl.TuyaTypeValue {
			return
		}
		state["distance"] = round3(float64(dp.Value()) / 100)
	default:
		state[fmt.Sprintf("dp_%d", dp.ID)] = tuyaDiagnosticValue(dp)
	}
}

func tuyaDiagnosticValue(dp zcl.TuyaDataPoint) any {
	switch dp.Type {
	case zcl.TuyaTypeBool:
		return dp.Bool()
	case zcl.TuyaTypeValue:
		return int(dp.Value())
	case zcl.TuyaTypeEnum:
		return int(dp.Enum())
	case zcl.TuyaTypeString:
		return string(dp.Data)
	default:
		return fmt.Sprintf("%x", dp.Data)
	}
}

func (h *Tuya) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, "presence")
	return []device.DiscoveryConfig{{
		Component: "binary_sensor",
		ObjectID:  key,
		Config: map[string]any{
			"name":           displayName(h.Binding, "Presence"),
			"device_class":   "occupancy",
			"value_template": valueTemplate(key),
			"payload_on":     true,
			"payload_off":    false,
		},
	}}
}
