// Package matter proxies python-matter-server nodes into the unified device
// registry. It speaks the server's WebSocket API, normalises Matter
// attributes into the shared state vocabulary, and republishes state and
// Home Assistant discovery through the MQTT service.
//
// The bridge is optional: it only runs when a server URL is configured, and
// its absence has zero impact on the Zigbee side.
package matter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
)

const (
	handshakeTimeout = 10 * time.Second
	pingPeriod       = 30 * time.Second
	pongWait         = 90 * time.Second
	writeWait        = 10 * time.Second
	reconnectMin     = 5 * time.Second
	reconnectMax     = 60 * time.Second
)

var errNotConnected = errors.New("not connected to matter server")

// Publisher is the slice of the MQTT service the bridge publishes through.
type Publisher interface {
	PublishState(ieee, safeName string, state map[string]any)
	PublishAvailability(ieee, safeName string, available bool)
	PublishDiscovery(dev device.Device, fragments []device.DiscoveryConfig)
	RemoveDiscovery(ieee string)
}

// Status summarises the bridge for the health endpoint.
type Status struct {
	Connected   bool   `json:"connected"`
	ServerURL   string `json:"server_url"`
	DeviceCount int    `json:"device_count"`
}

// Bridge maintains the connection to python-matter-server and the mirror of
// its node list.
type Bridge struct {
	url       string
	publisher Publisher
	events    *device.Broker
	names     *nameStore
	log       zerolog.Logger

	mu        sync.Mutex
	connected bool
	nodes     map[uint64]*node

	writeMu sync.Mutex
	conn    *websocket.Conn
	msgID   uint64
}

// NewBridge creates a bridge for the given ws:// URL. Friendly-name
// overrides are loaded from namesPath. publisher may be nil when MQTT is
// not configured.
func NewBridge(url string, publisher Publisher, events *device.Broker, namesPath string, log zerolog.Logger) *Bridge {
	b := &Bridge{
		url:       url,
		publisher: publisher,
		events:    events,
		names:     newNameStore(namesPath),
		log:       log.With().Str("component", "matter").Logger(),
		nodes:     make(map[uint64]*node),
	}
	if err := b.names.load(); err != nil {
		b.log.Warn().Err(err).Msg("Loading Matter name overrides failed")
	}
	return b
}

// IsConnected reports whether the server session is up.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Status returns a snapshot for the health endpoint.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{Connected: b.connected, ServerURL: b.url, DeviceCount: len(b.nodes)}
}

// Run connects and serves the session until the context is cancelled,
// reconnecting with doubling backoff on loss.
func (b *Bridge) Run(ctx context.Context) {
	delay := reconnectMin
	for {
		connected, err := b.session(ctx)
		if ctx.Err() != nil {
			b.log.Info().Msg("Matter bridge stopped")
			return
		}
		if connected {
			delay = reconnectMin
			b.log.Warn().Err(err).Msg("Matter server connection lost")
		} else {
			b.log.Warn().Err(err).Str("url", b.url).Msg("Matter server connect failed")
		}

		b.log.Info().Dur("retry_in", delay).Msg("Matter bridge reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMax)
	}
}

// session dials, loads the node list, and pumps messages until the
// connection drops. The first return value reports whether the dial
// succeeded, so the caller can reset its backoff.
func (b *Bridge) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return false, err
	}
	b.log.Info().Str("url", b.url).Msg("Connected to Matter server")

	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()
	b.setConnected(true)

	defer func() {
		b.setConnected(false)
		b.writeMu.Lock()
		b.conn = nil
		b.writeMu.Unlock()
		_ = conn.Close()
	}()

	// Close unblocks ReadMessage when the context is cancelled; the pinger
	// doubles as a liveness probe against a silent server.
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pumpCtx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := b.send("get_nodes", nil); err != nil {
		return true, fmt.Errorf("get_nodes: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		b.handleMessage(raw)
	}
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// send writes one command frame. matter-server correlates replies by the
// stringified message id.
func (b *Bridge) send(command string, args map[string]any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return errNotConnected
	}

	b.msgID++
	msg := map[string]any{
		"message_id": strconv.FormatUint(b.msgID, 10),
		"command":    command,
	}
	if args != nil {
		msg["args"] = args
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return b.conn.WriteJSON(msg)
}

type serverMessage struct {
	MessageID string          `json:"message_id"`
	Result    json.RawMessage `json:"result"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

type attributeEvent struct {
	NodeID        uint64 `json:"node_id"`
	AttributePath string `json:"attribute_path"`
	NewValue      any    `json:"new_value"`
}

func (b *Bridge) handleMessage(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.log.Warn().Err(err).Msg("Invalid JSON from matter server")
		return
	}

	if msg.MessageID != "" && len(msg.Result) > 0 {
		var list []nodeJSON
		if err := json.Unmarshal(msg.Result, &list); err != nil {
			return // result of some other command
		}
		for _, nj := range list {
			b.upsertNode(nj, true)
		}
		b.log.Info().Int("nodes", len(list)).Msg("Matter node list loaded")
		return
	}

	switch msg.Event {
	case "node_added":
		var nj nodeJSON
		if err := json.Unmarshal(msg.Data, &nj); err == nil && nj.NodeID != 0 {
			b.upsertNode(nj, true)
			b.log.Info().Uint64("node_id", nj.NodeID).Msg("Matter node added")
		}

	case "node_updated":
		var nj nodeJSON
		if err := json.Unmarshal(msg.Data, &nj); err == nil && nj.NodeID != 0 {
			b.upsertNode(nj, false)
		}

	case "node_removed":
		var data struct {
			NodeID uint64 `json:"node_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err == nil && data.NodeID != 0 {
			b.dropNode(data.NodeID)
		}

	case "attribute_updated":
		var evt attributeEvent
		if err := json.Unmarshal(msg.Data, &evt); err == nil {
			b.applyAttribute(evt)
		}
	}
}

// upsertNode merges a node snapshot and propagates the result: state to
// MQTT always, discovery when the node is new or explicitly requested.
func (b *Bridge) upsertNode(nj nodeJSON, discover bool) {
	b.mu.Lock()
	n, known := b.nodes[nj.NodeID]
	if !known {
		n = &node{id: nj.NodeID}
		b.nodes[nj.NodeID] = n
	}
	oldState := n.state
	if nj.Available != nil {
		n.available = *nj.Available
	}
	if nj.Attributes != nil {
		n.attributes = nj.Attributes
	}
	n.lastSeen = time.Now().UnixMilli()
	n.refreshInfo()
	n.rebuildState()
	changed := !stateEqual(oldState, n.state)
	dev := n.snapshot(b.resolveNameLocked(n))
	configs := n.discoveryConfigs()
	b.mu.Unlock()

	if !known {
		b.events.Emit(device.Event{
			Type:      device.EventDeviceJoined,
			IEEE:      dev.IEEE,
			Data:      map[string]any{"protocol": device.ProtocolMatter, "friendly_name": dev.Name()},
			Timestamp: time.Now(),
		})
	} else if changed {
		b.events.Emit(device.Event{
			Type:      device.EventStateChanged,
			IEEE:      dev.IEEE,
			Data:      dev.State,
			Timestamp: time.Now(),
		})
	}

	b.publishState(dev)
	if b.publisher != nil && discover {
		b.publisher.PublishDiscovery(dev, configs)
	}
}

func (b *Bridge) dropNode(nodeID uint64) {
	ieee := nodeIEEE(nodeID)
	b.mu.Lock()
	delete(b.nodes, nodeID)
	b.mu.Unlock()

	if b.publisher != nil {
		b.publisher.RemoveDiscovery(ieee)
	}
	b.events.Emit(device.Event{
		Type:      device.EventDeviceLeft,
		IEEE:      ieee,
		Timestamp: time.Now(),
	})
	b.log.Info().Uint64("node_id", nodeID).Msg("Matter node removed")
}

// applyAttribute patches one attribute and rebuilds the node state. The
// server sends granular updates; rebuilding from the patched table keeps
// derived keys (level, state) consistent.
func (b *Bridge) applyAttribute(evt attributeEvent) {
	if evt.AttributePath == "" || evt.NewValue == nil {
		return
	}

	b.mu.Lock()
	n, ok := b.nodes[evt.NodeID]
	if !ok {
		b.mu.Unlock()
		return
	}
	if n.attributes == nil {
		n.attributes = make(map[string]any)
	}
	n.attributes[evt.AttributePath] = evt.NewValue
	n.lastSeen = time.Now().UnixMilli()
	n.rebuildState()
	dev := n.snapshot(b.resolveNameLocked(n))
	b.mu.Unlock()

	b.events.Emit(device.Event{
		Type:      device.EventStateChanged,
		IEEE:      dev.IEEE,
		Data:      dev.State,
		Timestamp: time.Now(),
	})
	b.publishState(dev)
}

func (b *Bridge) publishState(dev device.Device) {
	if b.publisher == nil {
		return
	}
	state := make(map[string]any, len(dev.State)+1)
	for k, v := range dev.State {
		state[k] = v
	}
	state["linkquality"] = 0 // Matter reports no LQI
	b.publisher.PublishState(dev.IEEE, dev.SafeName(), state)
	b.publisher.PublishAvailability(dev.IEEE, dev.SafeName(), dev.Available)
}

// resolveNameLocked applies the override chain: saved name, node label,
// model, then a generic fallback. Callers hold b.mu.
func (b *Bridge) resolveNameLocked(n *node) string {
	if name, ok := b.names.get(nodeIEEE(n.id)); ok {
		return name
	}
	if n.label != "" {
		return n.label
	}
	if n.model != "" {
		return n.model
	}
	return fmt.Sprintf("Matter %d", n.id)
}

// Devices returns snapshots of all known Matter nodes.
func (b *Bridge) Devices() []device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]device.Device, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n.snapshot(b.resolveNameLocked(n)))
	}
	return out
}

// Device returns a snapshot of one node by its synthetic address.
func (b *Bridge) Device(ieee string) (device.Device, bool) {
	id, ok := parseNodeIEEE(ieee)
	if !ok {
		return device.Device{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[id]
	if !ok {
		return device.Device{}, false
	}
	return n.snapshot(b.resolveNameLocked(n)), true
}

// Owns reports whether the address names a Matter node.
func (b *Bridge) Owns(ieee string) bool {
	_, ok := parseNodeIEEE(ieee)
	return ok
}

// SendCommand maps a normalised command onto Matter cluster operations and
// applies an optimistic local update so the UI reflects the change before
// the server's attribute report lands.
func (b *Bridge) SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult {
	id, ok := parseNodeIEEE(ieee)
	if !ok {
		return device.Failed(fmt.Errorf("%w: %s", device.ErrNotFound, ieee))
	}

	var err error
	switch command {
	case "on", "off", "toggle":
		names := map[string]string{"on": "On", "off": "Off", "toggle": "Toggle"}
		err = b.send("device_command", map[string]any{
			"node_id":      id,
			"endpoint_id":  1,
			"cluster_id":   clusterOnOff,
			"command_name": names[command],
		})

	case "brightness":
		level := int(toFloat(value) * 2.54)
		err = b.send("device_command", map[string]any{
			"node_id":      id,
			"endpoint_id":  1,
			"cluster_id":   clusterLevel,
			"command_name": "MoveToLevelWithOnOff",
			"args":         map[string]any{"level": level, "transition_time": 5},
		})

	case "color_temp":
		kelvin := toFloat(value)
		if kelvin == 0 {
			kelvin = 4000
		}
		if kelvin < 1 {
			kelvin = 1
		}
		err = b.send("device_command", map[string]any{
			"node_id":      id,
			"endpoint_id":  1,
			"cluster_id":   clusterColor,
			"command_name": "MoveToColorTemperature",
			"args":         map[string]any{"color_temperature_mireds": int(1000000 / kelvin), "transition_time": 5},
		})

	default:
		return device.Failed(fmt.Errorf("%w: unknown command %q", device.ErrUnsupported, command))
	}
	if err != nil {
		return device.Failed(err)
	}

	b.applyOptimistic(id, command, value)
	return device.OK()
}

func (b *Bridge) applyOptimistic(id uint64, command string, value any) {
	b.mu.Lock()
	n, ok := b.nodes[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	switch command {
	case "on":
		n.state["state"] = "ON"
		n.state["on"] = true
	case "off":
		n.state["state"] = "OFF"
		n.state["on"] = false
	case "brightness":
		pct := toFloat(value)
		n.state["brightness"] = int(pct * 2.54)
		n.state["level"] = int(pct)
		if pct > 0 {
			n.state["state"] = "ON"
			n.state["on"] = true
		}
	default:
		b.mu.Unlock()
		return
	}
	dev := n.snapshot(b.resolveNameLocked(n))
	b.mu.Unlock()

	b.events.Emit(device.Event{
		Type:      device.EventStateChanged,
		IEEE:      dev.IEEE,
		Data:      dev.State,
		Timestamp: time.Now(),
	})
	b.publishState(dev)
}

// Commission starts pairing a device by its setup code.
func (b *Bridge) Commission(code string) error {
	if err := b.send("commission_with_code", map[string]any{"code": code}); err != nil {
		return err
	}
	b.log.Info().Msg("Matter commissioning started")
	return nil
}

// RemoveNode unpairs a node and clears its discovery entries.
func (b *Bridge) RemoveNode(ieee string) error {
	id, ok := parseNodeIEEE(ieee)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrNotFound, ieee)
	}
	if err := b.send("remove_node", map[string]any{"node_id": id}); err != nil {
		return err
	}
	b.dropNode(id)
	return nil
}

// Rename stores a friendly-name override and republishes discovery under
// the new name.
func (b *Bridge) Rename(ieee, name string) error {
	id, ok := parseNodeIEEE(ieee)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrNotFound, ieee)
	}
	if err := b.names.set(ieee, name); err != nil {
		return err
	}

	b.mu.Lock()
	n, known := b.nodes[id]
	var dev device.Device
	var configs []device.DiscoveryConfig
	if known {
		dev = n.snapshot(b.resolveNameLocked(n))
		configs = n.discoveryConfigs()
	}
	b.mu.Unlock()

	if known && b.publisher != nil {
		b.publisher.PublishDiscovery(dev, configs)
	}
	return nil
}

func stateEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if fmt.Sprint(b[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
