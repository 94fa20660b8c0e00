package matter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/urmzd/zigman/pkg/device"
)

// Matter cluster ids carried over from ZCL. The bridge maps them back to
// their Zigbee equivalents when synthesising endpoints so capability
// derivation works unchanged for Matter nodes.
const (
	clusterOnOff        = 6
	clusterLevel        = 8
	clusterColor        = 768
	clusterTemperature  = 1026
	clusterHumidity     = 1029
	clusterOccupancy    = 1030
	clusterIlluminance  = 1024
	clusterBooleanState = 69
	clusterBasicInfo    = 40
)

// node is one matter-server node. Attribute keys are "endpoint/cluster/attr"
// strings as the server reports them.
type node struct {
	id         uint64
	available  bool
	attributes map[string]any

	manufacturer string
	model        string
	label        string

	state    map[string]any
	lastSeen int64 // unix milliseconds
}

// nodeJSON is the wire shape of a node in get_nodes results and node
// events. Available is a pointer so an update without the field keeps the
// previous value.
type nodeJSON struct {
	NodeID     uint64         `json:"node_id"`
	Available  *bool          `json:"available"`
	Attributes map[string]any `json:"attributes"`
}

func nodeIEEE(id uint64) string {
	return fmt.Sprintf("matter_%d", id)
}

// parseNodeIEEE recovers the node id from a synthetic matter_<id> address.
func parseNodeIEEE(ieee string) (uint64, bool) {
	rest, ok := strings.CutPrefix(ieee, "matter_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// findAttr looks an attribute up across the first few endpoints. Basic
// Information always lives on endpoint 0; application clusters usually on 1.
func findAttr(attrs map[string]any, cluster, attr int) (any, bool) {
	for _, ep := range []int{0, 1, 2} {
		key := strconv.Itoa(ep) + "/" + strconv.Itoa(cluster) + "/" + strconv.Itoa(attr)
		if v, ok := attrs[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (n *node) refreshInfo() {
	if v, ok := findAttr(n.attributes, clusterBasicInfo, 2); ok { // VendorName
		n.manufacturer = toString(v)
	}
	model := ""
	if v, ok := findAttr(n.attributes, clusterBasicInfo, 4); ok { // ProductName
		model = toString(v)
	}
	if model == "" {
		if v, ok := findAttr(n.attributes, clusterBasicInfo, 3); ok { // ProductLabel
			model = toString(v)
		}
	}
	if model != "" {
		n.model = model
	}
	if v, ok := findAttr(n.attributes, clusterBasicInfo, 5); ok { // NodeLabel
		if label := toString(v); label != "" {
			n.label = label
		}
	}
}

// rebuildState maps the raw attribute table onto the normalised state
// vocabulary shared with the Zigbee side.
func (n *node) rebuildState() {
	state := map[string]any{
		"protocol":  device.ProtocolMatter,
		"available": n.available,
		"node_id":   n.id,
	}

	if v, ok := findAttr(n.attributes, clusterOnOff, 0); ok {
		on := toBool(v)
		state["on"] = on
		if on {
			state["state"] = "ON"
		} else {
			state["state"] = "OFF"
		}
	}

	if v, ok := findAttr(n.attributes, clusterLevel, 0); ok {
		raw := int(toFloat(v))
		state["brightness"] = raw
		level := 0
		if raw > 0 {
			level = int(float64(raw) / 2.54)
		}
		state["level"] = level
	}

	if v, ok := findAttr(n.attributes, clusterColor, 7); ok {
		if mireds := int(toFloat(v)); mireds > 0 {
			state["color_temp"] = mireds
		}
	}
	x, okX := findAttr(n.attributes, clusterColor, 3)
	y, okY := findAttr(n.attributes, clusterColor, 4)
	if okX && okY {
		state["color_x"] = math.Round(toFloat(x)/65535*10000) / 10000
		state["color_y"] = math.Round(toFloat(y)/65535*10000) / 10000
	}

	if v, ok := findAttr(n.attributes, clusterTemperature, 0); ok {
		state["temperature"] = math.Round(toFloat(v)/100*10) / 10
	}
	if v, ok := findAttr(n.attributes, clusterHumidity, 0); ok {
		state["humidity"] = math.Round(toFloat(v)/100*10) / 10
	}
	if v, ok := findAttr(n.attributes, clusterOccupancy, 0); ok {
		state["occupancy"] = int(toFloat(v))&0x01 != 0
	}
	if v, ok := findAttr(n.attributes, clusterIlluminance, 0); ok {
		state["illuminance"] = int(toFloat(v))
	}
	if v, ok := findAttr(n.attributes, clusterBooleanState, 0); ok {
		state["contact"] = toBool(v)
	}

	n.state = state
}

// clusters returns the Zigbee-equivalent input clusters implied by the
// node's attribute table.
func (n *node) clusters() []uint16 {
	mapping := []struct {
		matter int
		zigbee uint16
	}{
		{clusterOnOff, 0x0006},
		{clusterLevel, 0x0008},
		{clusterColor, 0x0300},
		{clusterTemperature, 0x0402},
		{clusterHumidity, 0x0405},
		{clusterOccupancy, 0x0406},
		{clusterIlluminance, 0x0400},
		{clusterBooleanState, 0x0045},
	}
	var out []uint16
	for _, m := range mapping {
		attrs := []int{0}
		if m.matter == clusterColor {
			attrs = []int{7, 3, 0} // mireds, CurrentX, CurrentHue
		}
		for _, a := range attrs {
			if _, ok := findAttr(n.attributes, m.matter, a); ok {
				out = append(out, m.zigbee)
				break
			}
		}
	}
	return out
}

// snapshot renders the node as a unified-registry device. friendlyName is
// the resolved name after overrides.
func (n *node) snapshot(friendlyName string) device.Device {
	state := make(map[string]any, len(n.state))
	for k, v := range n.state {
		state[k] = v
	}
	return device.Device{
		IEEE:         nodeIEEE(n.id),
		NWK:          uint16(n.id),
		Protocol:     device.ProtocolMatter,
		Manufacturer: n.manufacturer,
		Model:        n.model,
		FriendlyName: friendlyName,
		Available:    n.available,
		LastSeen:     n.lastSeen,
		State:        state,
		Endpoints: map[uint8]*device.Endpoint{
			1: {
				ID:         1,
				InClusters: n.clusters(),
				Role:       device.DeriveRole(n.clusters(), nil),
			},
		},
	}
}

// discoveryConfigs builds the Home Assistant fragments for the node,
// mirroring what the Zigbee cluster handlers produce so both protocols
// present identically.
func (n *node) discoveryConfigs() []device.DiscoveryConfig {
	var out []device.DiscoveryConfig

	if _, hasOnOff := n.state["state"]; hasOnOff {
		component, label := "switch", "Switch"
		_, hasLevel := n.state["brightness"]
		_, hasTemp := n.state["color_temp"]
		if hasLevel || hasTemp {
			component, label = "light", "Light"
		}
		out = append(out, device.DiscoveryConfig{
			Component: component,
			ObjectID:  "state",
			Config: map[string]any{
				"name":                 label,
				"state_value_template": "{{ value_json.state }}",
				"payload_on":           "ON",
				"payload_off":          "OFF",
			},
		})
	}

	type sensor struct {
		key   string
		class string
		unit  string
		label string
	}
	for _, s := range []sensor{
		{"temperature", "temperature", "°C", "Temperature"},
		{"humidity", "humidity", "%", "Humidity"},
		{"illuminance", "illuminance", "lx", "Illuminance"},
	} {
		if _, ok := n.state[s.key]; !ok {
			continue
		}
		out = append(out, device.DiscoveryConfig{
			Component: "sensor",
			ObjectID:  s.key,
			Config: map[string]any{
				"name":                s.label,
				"device_class":        s.class,
				"unit_of_measurement": s.unit,
				"value_template":      "{{ value_json." + s.key + " }}",
			},
		})
	}

	if _, ok := n.state["occupancy"]; ok {
		out = append(out, device.DiscoveryConfig{
			Component: "binary_sensor",
			ObjectID:  "occupancy",
			Config: map[string]any{
				"name":           "Occupancy",
				"device_class":   "occupancy",
				"payload_on":     "true",
				"payload_off":    "false",
				"value_template": "{{ value_json.occupancy | lower }}",
			},
		})
	}
	if _, ok := n.state["contact"]; ok {
		// BooleanState reads true when closed; HA doors report "on" when open.
		out = append(out, device.DiscoveryConfig{
			Component: "binary_sensor",
			ObjectID:  "contact",
			Config: map[string]any{
				"name":           "Contact",
				"device_class":   "door",
				"payload_on":     "false",
				"payload_off":    "true",
				"value_template": "{{ value_json.contact | lower }}",
			},
		})
	}
	return out
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t == "true" || t == "True" || t == "1"
	default:
		return false
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
