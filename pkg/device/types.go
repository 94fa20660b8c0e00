package device

import (
	"sort"
	"time"
)

// Protocol constants
const (
	ProtocolZigbee = "zigbee"
	ProtocolMatter = "matter"
)

// Device is a node in the unified registry. IEEE is the canonical identity
// (16 lowercase hex characters) and is immutable; everything else may change
// over the device's lifetime. Fields are guarded by the owning Engine's lock;
// readers outside the engine work on snapshots.
type Device struct {
	IEEE         string              `json:"ieee"`
	NWK          uint16              `json:"nwk"`
	Protocol     string              `json:"protocol"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Model        string              `json:"model,omitempty"`
	SWVersion    string              `json:"sw_version,omitempty"`
	PowerSource  string              `json:"power_source,omitempty"`
	FriendlyName string              `json:"friendly_name,omitempty"`
	Available    bool                `json:"available"`
	LastSeen     int64               `json:"last_seen"` // unix milliseconds
	State        map[string]any      `json:"state"`
	Endpoints    map[uint8]*Endpoint `json:"endpoints"`

	commandFailures int
}

// Name returns the friendly name, falling back to the IEEE address.
func (d *Device) Name() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.IEEE
}

// SafeName returns the name sanitised for use as an MQTT topic segment.
func (d *Device) SafeName() string {
	return SafeName(d.Name())
}

// Capabilities derives the device's capability set from the input clusters
// present across its endpoints.
func (d *Device) Capabilities() []string {
	caps := make(map[string]bool)
	for _, ep := range d.Endpoints {
		for _, c := range ep.InClusters {
			switch c {
			case 0x0006:
				caps["on_off"] = true
			case 0x0008:
				caps["level_control"] = true
			case 0x0300:
				caps["color_control"] = true
			case 0x0102:
				caps["cover"] = true
				caps["window_covering"] = true
			case 0x0201:
				caps["thermostat"] = true
			case 0x0202:
				caps["fan_control"] = true
			case 0x0406:
				caps["motion_sensor"] = true
			case 0x0500:
				caps["security_sensor"] = true
			}
		}
	}
	if caps["on_off"] {
		if caps["level_control"] || caps["color_control"] {
			caps["light"] = true
		} else {
			caps["switch"] = true
		}
	}
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Endpoint scopes clusters within a device.
type Endpoint struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceType  uint16   `json:"device_type"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
	Role        Role     `json:"role"`

	Handlers map[uint16]Handler `json:"-"`
}

// Role classifies an endpoint by its cluster sets.
type Role string

const (
	RoleActuator   Role = "actuator"
	RoleSensor     Role = "sensor"
	RoleController Role = "controller"
	RoleMixed      Role = "mixed"
	RolePassive    Role = "passive"
)

var actuationClusters = map[uint16]bool{
	0x0006: true, // OnOff
	0x0008: true, // Level
	0x0102: true, // Window Covering
	0x0201: true, // Thermostat
	0x0300: true, // Color
}

var measurementClusters = map[uint16]bool{
	0x0400: true, // Illuminance
	0x0402: true, // Temperature
	0x0403: true, // Pressure
	0x0404: true, // Flow
	0x0405: true, // Humidity
	0x0406: true, // Occupancy
	0x0500: true, // IAS Zone
	0x0702: true, // Metering
	0x0B04: true, // Electrical Measurement
}

var controlOutClusters = map[uint16]bool{
	0x0006: true,
	0x0008: true,
	0x0300: true,
}

// DeriveRole classifies an endpoint from its input and output cluster sets.
func DeriveRole(in, out []uint16) Role {
	var actuates, measures, controls bool
	for _, c := range in {
		if actuationClusters[c] {
			actuates = true
		}
		if measurementClusters[c] {
			measures = true
		}
	}
	for _, c := range out {
		if controlOutClusters[c] {
			controls = true
		}
	}

	switch {
	case actuates && (measures || controls):
		return RoleMixed
	case actuates:
		return RoleActuator
	case controls:
		return RoleController
	case measures:
		return RoleSensor
	default:
		return RolePassive
	}
}

// CommandResult is the structured outcome of a device command.
type CommandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK is a successful CommandResult.
func OK() CommandResult { return CommandResult{Success: true} }

// Failed wraps an error into a CommandResult.
func Failed(err error) CommandResult {
	if err == nil {
		return OK()
	}
	return CommandResult{Success: false, Error: err.Error()}
}

// DiscoveryConfig is one auto-discovery fragment contributed by a handler.
// The publisher fills in topics and device identification.
type DiscoveryConfig struct {
	Component string         // sensor, binary_sensor, light, switch, cover
	ObjectID  string         // e.g. "occupancy", "power"
	Config    map[string]any // component-specific payload fragment
}

// Event is a gateway event delivered to subscribers (SSE, tracing).
type Event struct {
	Type      string         `json:"type"`
	IEEE      string         `json:"ieee,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Event types
const (
	EventDeviceJoined    = "device_joined"
	EventDeviceLeft      = "device_left"
	EventStateChanged    = "state_changed"
	EventAvailability    = "availability"
	EventAutomationTrace = "automation_trace"
	EventAutomationFired = "automation_triggered"
	EventPermitJoin      = "permit_join"
)
