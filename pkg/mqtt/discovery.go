package mqtt

import (
	"encoding/json"
	"strings"

	"github.com/urmzd/zigman/pkg/device"
)

const discoveryPrefix = "homeassistant"

// PublishDiscovery announces a device's entities to Home Assistant. Handler
// fragments carry the component-specific keys; this layer fills in topics,
// identity, and availability, and enriches lights and covers with their
// command topics. Config topics are remembered so RemoveDiscovery can clear
// them after the device is gone.
func (s *Service) PublishDiscovery(dev device.Device, fragments []device.DiscoveryConfig) {
	if len(fragments) == 0 {
		return
	}

	safe := dev.SafeName()
	stateTopic := s.stateTopic(safe)
	caps := capabilitySet(dev.Capabilities())

	deviceBlock := map[string]any{
		"identifiers":  []string{dev.IEEE},
		"name":         dev.Name(),
		"model":        orDefault(dev.Model, "Zigbee Device"),
		"manufacturer": orDefault(dev.Manufacturer, "Unknown"),
		"via_device":   s.opts.BaseTopic,
	}

	var topics []string
	for _, frag := range fragments {
		config := make(map[string]any, len(frag.Config)+8)
		for k, v := range frag.Config {
			config[k] = v
		}
		config["unique_id"] = dev.IEEE + "_" + frag.ObjectID
		config["state_topic"] = stateTopic
		config["device"] = deviceBlock
		config["availability"] = []map[string]any{
			{"topic": s.BridgeStateTopic()},
			{"topic": s.availabilityTopic(safe)},
		}
		config["availability_mode"] = "all"

		s.enrich(frag, config, safe, stateTopic, caps)

		body, err := json.Marshal(config)
		if err != nil {
			s.log.Error().Str("ieee", dev.IEEE).Err(err).Msg("discovery marshal failed")
			continue
		}
		topic := s.discoveryTopic(frag.Component, dev.IEEE, frag.ObjectID)
		if s.publishBlocking(topic, body, 1, true) {
			s.count(func(c *Stats) { c.DiscoveryPublished++ })
		}
		topics = append(topics, topic)
	}

	s.mu.Lock()
	if s.discovered == nil {
		s.discovered = make(map[string][]string)
	}
	s.discovered[dev.IEEE] = topics
	s.mu.Unlock()
}

// RemoveDiscovery clears the retained config topics published for the
// device, so Home Assistant drops its entities.
func (s *Service) RemoveDiscovery(ieee string) {
	s.mu.Lock()
	topics := s.discovered[ieee]
	delete(s.discovered, ieee)
	s.mu.Unlock()

	for _, topic := range topics {
		s.publishBlocking(topic, nil, 1, true)
	}
}

func (s *Service) discoveryTopic(component, ieee, objectID string) string {
	return discoveryPrefix + "/" + component + "/" + ieee + "/" + objectID + "/config"
}

// enrich adds the command plumbing a passive fragment cannot know about.
// Lights grow brightness and colour temperature controls when the device
// exposes those clusters; covers grow open/close/stop and positioning.
func (s *Service) enrich(frag device.DiscoveryConfig, config map[string]any, safe, stateTopic string, caps map[string]bool) {
	setTopic := s.opts.BaseTopic + "/" + safe + "/set"

	switch frag.Component {
	case "switch":
		config["command_topic"] = setTopic

	case "light":
		config["command_topic"] = setTopic
		suffix := endpointSuffix(frag.ObjectID)
		if caps["level_control"] {
			config["brightness_state_topic"] = stateTopic
			config["brightness_value_template"] = "{{ value_json.level" + suffix + " }}"
			config["brightness_command_topic"] = setTopic + "/brightness"
			config["brightness_scale"] = 100
		}
		if caps["color_control"] {
			config["color_temp_state_topic"] = stateTopic
			config["color_temp_value_template"] = "{{ value_json.color_temp" + suffix + " }}"
			config["color_temp_command_topic"] = setTopic + "/color_temp"
		}

	case "cover":
		config["command_topic"] = setTopic
		config["payload_open"] = "OPEN"
		config["payload_close"] = "CLOSE"
		config["payload_stop"] = "STOP"
		config["position_topic"] = stateTopic
		config["set_position_topic"] = setTopic + "/position"
	}
}

// endpointSuffix extracts the "_<ep>" tail of a multi-endpoint object id,
// e.g. "state_2" yields "_2", so enriched templates hit the same scoped
// state keys the fragment's own template does.
func endpointSuffix(objectID string) string {
	idx := strings.LastIndex(objectID, "_")
	if idx < 0 {
		return ""
	}
	tail := objectID[idx+1:]
	if tail == "" {
		return ""
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return objectID[idx:]
}

func capabilitySet(caps []string) map[string]bool {
	out := make(map[string]bool, len(caps))
	for _, c := range caps {
		out[c] = true
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
