package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/urmzd/zigman/pkg/device"
)

const commandTimeout = 10 * time.Second

// subscribeCommands attaches the set-topic intake. Called from OnConnect so
// subscriptions survive reconnects.
func (s *Service) subscribeCommands() {
	filters := []string{
		s.opts.BaseTopic + "/+/set",
		s.opts.BaseTopic + "/+/set/+",
	}
	for _, f := range filters {
		token := s.client.Subscribe(f, 0, s.handleCommand)
		if !token.WaitTimeout(subscribeTimeout) || token.Error() != nil {
			s.log.Error().Str("filter", f).AnErr("error", token.Error()).Msg("subscribe failed")
		}
	}
}

func (s *Service) handleCommand(_ pahomqtt.Client, msg pahomqtt.Message) {
	rel := strings.TrimPrefix(msg.Topic(), s.opts.BaseTopic+"/")
	parts := strings.Split(rel, "/")
	if len(parts) < 2 || parts[1] != "set" {
		return
	}

	s.mu.Lock()
	router := s.router
	s.mu.Unlock()
	if router == nil {
		return
	}

	dev, ok := resolveDevice(router, parts[0])
	if !ok {
		s.log.Debug().Str("target", parts[0]).Msg("command for unknown device")
		return
	}
	s.count(func(c *Stats) { c.CommandsReceived++ })

	command, value, ok := parseCommand(parts, msg.Payload())
	if !ok {
		s.log.Warn().Str("topic", msg.Topic()).Str("payload", string(msg.Payload())).Msg("unparseable command")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res := router.SendCommand(ctx, dev.IEEE, command, value, 0)
	if !res.Success {
		s.log.Warn().Str("ieee", dev.IEEE).Str("command", command).Str("error", res.Error).Msg("command failed")
		return
	}
	s.log.Debug().Str("ieee", dev.IEEE).Str("command", command).Msg("command dispatched")
}

// resolveDevice matches the topic segment against safe names first, falling
// back to raw IEEE so scripted publishers can skip the friendly name.
func resolveDevice(router CommandRouter, target string) (device.Device, bool) {
	for _, d := range router.Devices() {
		if d.SafeName() == target || d.IEEE == target {
			return d, true
		}
	}
	return device.Device{}, false
}

// parseCommand normalises the three intake shapes: a bare verb on /set, a
// JSON document on /set, and a single value on /set/<attribute>.
func parseCommand(parts []string, payload []byte) (string, any, bool) {
	if len(parts) >= 3 {
		attr := parts[2]
		if attr == "state" {
			if cmd, ok := plainCommand(payload); ok {
				return cmd, nil, true
			}
			return "", nil, false
		}
		return attr, parseValue(payload), true
	}

	if cmd, ok := plainCommand(payload); ok {
		return cmd, nil, true
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", nil, false
	}
	if cmd, ok := body["command"].(string); ok {
		return strings.ToLower(cmd), body["value"], true
	}
	if state, ok := body["state"].(string); ok {
		if cmd, ok := plainCommand([]byte(state)); ok {
			return cmd, nil, true
		}
	}
	for _, key := range []string{"brightness", "color_temp", "position"} {
		if v, ok := body[key]; ok {
			return key, v, true
		}
	}
	return "", nil, false
}

// plainCommand maps the bare payloads Home Assistant's default schema sends.
func plainCommand(payload []byte) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON":
		return "on", true
	case "OFF":
		return "off", true
	case "TOGGLE":
		return "toggle", true
	case "OPEN":
		return "open", true
	case "CLOSE":
		return "close", true
	case "STOP":
		return "stop", true
	}
	return "", false
}

// parseValue decodes a bare attribute payload; anything that is not valid
// JSON passes through as a string.
func parseValue(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return strings.TrimSpace(string(payload))
	}
	return v
}
