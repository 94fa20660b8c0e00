package device

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Debounce window for coalescing state updates before fan-out.
const debounceWindow = 50 * time.Millisecond

// Availability defaults: a device is unavailable after
// 3 x max_report_interval + 60 s of silence, or five consecutive command
// failures.
const (
	defaultMaxReportInterval = 300
	availabilityGrace        = 60
	maxCommandFailures       = 5
)

// StatePublisher receives full device state after every coalesced change.
// Implemented by the MQTT service.
type StatePublisher interface {
	PublishState(ieee, safeName string, state map[string]any)
	PublishAvailability(ieee, safeName string, available bool)
}

// DeltaConsumer receives the changed keys of every coalesced state change.
// Implemented by the automation engine.
type DeltaConsumer interface {
	DeviceStateChanged(sourceIEEE string, delta map[string]any)
}

// EndpointDescriptor is the interview result for one endpoint.
type EndpointDescriptor struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceType  uint16   `json:"device_type"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}

type pendingUpdate struct {
	delta map[string]any
	timer *time.Timer
}

// Engine owns the device registry and the normalised state flow: handlers
// emit partial updates, the engine computes deltas, coalesces them for 50 ms
// and fans out full state to MQTT plus the delta to the automation engine.
type Engine struct {
	mu      sync.RWMutex
	devices map[string]*Device

	radio    Radio
	registry HandlerRegistry
	stats    *StatsTracker
	events   *Broker
	log      zerolog.Logger

	publisher StatePublisher
	deltas    DeltaConsumer

	pending      map[string]*pendingUpdate
	dirty        map[string]bool
	configStatus map[string]string
}

// NewEngine creates the device engine. The publisher and delta consumer are
// wired after construction to break the dependency cycle with the automation
// engine.
func NewEngine(radio Radio, registry HandlerRegistry, stats *StatsTracker, events *Broker, log zerolog.Logger) *Engine {
	return &Engine{
		devices:      make(map[string]*Device),
		radio:        radio,
		registry:     registry,
		stats:        stats,
		events:       events,
		log:          log.With().Str("component", "engine").Logger(),
		pending:      make(map[string]*pendingUpdate),
		dirty:        make(map[string]bool),
		configStatus: make(map[string]string),
	}
}

// SetPublisher wires the MQTT state publisher.
func (e *Engine) SetPublisher(p StatePublisher) {
	e.mu.Lock()
	e.publisher = p
	e.mu.Unlock()
}

// SetDeltaConsumer wires the automation engine.
func (e *Engine) SetDeltaConsumer(dc DeltaConsumer) {
	e.mu.Lock()
	e.deltas = dc
	e.mu.Unlock()
}

// Radio returns the radio this engine drives.
func (e *Engine) Radio() Radio { return e.radio }

// Events returns the gateway event broker.
func (e *Engine) Events() *Broker { return e.events }

// Stats returns the packet statistics tracker.
func (e *Engine) Stats() *StatsTracker { return e.stats }

// AddDevice registers a device shell. Returns the device and whether it was
// newly created.
func (e *Engine) AddDevice(ieee string, nwk uint16, protocol string) (*Device, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.devices[ieee]; ok {
		d.NWK = nwk
		return d, false
	}
	d := &Device{
		IEEE:      ieee,
		NWK:       nwk,
		Protocol:  protocol,
		State:     make(map[string]any),
		Endpoints: make(map[uint8]*Endpoint),
		LastSeen:  time.Now().UnixMilli(),
	}
	e.devices[ieee] = d
	e.dirty[ieee] = true
	return d, true
}

// SetEndpoints installs the interview result and builds one handler per
// input cluster through the registry.
func (e *Engine) SetEndpoints(ieee string, descriptors []EndpointDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.devices[ieee]
	if !ok {
		return fmt.Errorf("set endpoints %s: %w", ieee, ErrNotFound)
	}

	d.Endpoints = make(map[uint8]*Endpoint, len(descriptors))
	for _, desc := range descriptors {
		ep := &Endpoint{
			ID:          desc.ID,
			ProfileID:   desc.ProfileID,
			DeviceType:  desc.DeviceType,
			InClusters:  desc.InClusters,
			OutClusters: desc.OutClusters,
			Role:        DeriveRole(desc.InClusters, desc.OutClusters),
			Handlers:    make(map[uint16]Handler, len(desc.InClusters)),
		}
		d.Endpoints[desc.ID] = ep
	}

	for _, ep := range d.Endpoints {
		for _, cluster := range ep.InClusters {
			ep.Handlers[cluster] = e.buildHandlerLocked(d, ep, cluster)
		}
	}
	e.dirty[ieee] = true
	return nil
}

func (e *Engine) buildHandlerLocked(d *Device, ep *Endpoint, cluster uint16) Handler {
	ieee := d.IEEE
	resolve := func() Address {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if dev, ok := e.devices[ieee]; ok {
			return Address{IEEE: dev.IEEE, NWK: dev.NWK}
		}
		return Address{IEEE: ieee}
	}
	b := &Binding{
		Device:    d,
		Endpoint:  ep,
		ClusterID: cluster,
		Client:    NewClusterClient(e.radio, resolve, ep.ID, cluster),
		Log: e.log.With().
			Str("ieee", ieee).
			Uint8("endpoint", ep.ID).
			Str("cluster", fmt.Sprintf("0x%04x", cluster)).
			Logger(),
		engine: e,
	}
	h := e.registry.Create(b)
	e.configStatus[handlerKey(ieee, ep.ID, cluster)] = "new"
	return h
}

// RemoveDevice drops a device from the registry.
func (e *Engine) RemoveDevice(ieee string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.devices[ieee]
	if !ok {
		return false
	}
	for _, ep := range d.Endpoints {
		for cluster := range ep.Handlers {
			delete(e.configStatus, handlerKey(ieee, ep.ID, cluster))
		}
	}
	delete(e.devices, ieee)
	delete(e.pending, ieee)
	delete(e.dirty, ieee)
	return true
}

// Device returns a snapshot of one device.
func (e *Engine) Device(ieee string) (Device, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	if !ok {
		return Device{}, false
	}
	return e.snapshotLocked(d), true
}

// Devices returns snapshots of all devices, ordered by IEEE.
func (e *Engine) Devices() []Device {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Device, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, e.snapshotLocked(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IEEE < out[j].IEEE })
	return out
}

// Actuators returns snapshots of devices exposing an actuator capability.
func (e *Engine) Actuators() []Device {
	var out []Device
	for _, d := range e.Devices() {
		if HasActuatorCapability(d.Capabilities()) {
			out = append(out, d)
		}
	}
	return out
}

// HasActuatorCapability reports whether a capability set includes one that
// accepts commands.
func HasActuatorCapability(caps []string) bool {
	for _, c := range caps {
		switch c {
		case "on_off", "light", "switch", "cover", "window_covering", "thermostat", "fan_control":
			return true
		}
	}
	return false
}

func (e *Engine) snapshotLocked(d *Device) Device {
	cp := *d
	cp.State = make(map[string]any, len(d.State))
	for k, v := range d.State {
		cp.State[k] = v
	}
	cp.Endpoints = make(map[uint8]*Endpoint, len(d.Endpoints))
	for id, ep := range d.Endpoints {
		epCopy := *ep
		epCopy.Handlers = nil
		cp.Endpoints[id] = &epCopy
	}
	return cp
}

// DeviceExists reports whether a device is registered.
func (e *Engine) DeviceExists(ieee string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.devices[ieee]
	return ok
}

// DeviceState returns a copy of the device's full state map.
func (e *Engine) DeviceState(ieee string) (map[string]any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(d.State))
	for k, v := range d.State {
		out[k] = v
	}
	return out, true
}

// DeviceAvailable reports the availability flag.
func (e *Engine) DeviceAvailable(ieee string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	return ok && d.Available
}

// DeviceCapabilities returns the derived capability set.
func (e *Engine) DeviceCapabilities(ieee string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	if !ok {
		return nil
	}
	return d.Capabilities()
}

// SetFriendlyName renames a device. Persistence is the caller's concern.
func (e *Engine) SetFriendlyName(ieee, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.devices[ieee]
	if !ok {
		return ErrNotFound
	}
	d.FriendlyName = name
	e.dirty[ieee] = true
	return nil
}

func (e *Engine) setDeviceInfo(ieee, manufacturer, model, swVersion, powerSource string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.devices[ieee]
	if !ok {
		return
	}
	if manufacturer != "" {
		d.Manufacturer = manufacturer
	}
	if model != "" {
		d.Model = model
	}
	if swVersion != "" {
		d.SWVersion = swVersion
	}
	if powerSource != "" {
		d.PowerSource = powerSource
	}
	e.dirty[ieee] = true
}

// UpdateState merges a partial state map, computes the delta of keys whose
// value actually changed, and schedules the debounced fan-out. last_seen
// always advances; fan-out happens only on a non-empty delta.
func (e *Engine) UpdateState(ieee string, partial map[string]any) {
	e.mu.Lock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.Unlock()
		e.log.Debug().Str("ieee", ieee).Msg("state update for unknown device dropped")
		return
	}

	delta := mergeState(d, partial)
	d.LastSeen = time.Now().UnixMilli()
	e.dirty[ieee] = true

	if len(delta) == 0 {
		e.mu.Unlock()
		return
	}

	p, exists := e.pending[ieee]
	if !exists {
		p = &pendingUpdate{delta: make(map[string]any)}
		e.pending[ieee] = p
	}
	for k, v := range delta {
		p.delta[k] = v
	}
	if p.timer == nil {
		p.timer = time.AfterFunc(debounceWindow, func() { e.flush(ieee) })
	}
	e.mu.Unlock()
}

// ApplyImmediate is the fast-path entry: it mutates state without debounce
// and schedules the automation delta asynchronously. The caller is
// responsible for its own low-latency MQTT publish. Returns the delta.
func (e *Engine) ApplyImmediate(ieee string, partial map[string]any) map[string]any {
	e.mu.Lock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	delta := mergeState(d, partial)
	d.LastSeen = time.Now().UnixMilli()
	e.dirty[ieee] = true
	dc := e.deltas
	e.mu.Unlock()

	if len(delta) == 0 {
		return delta
	}

	go func() {
		if dc != nil {
			dc.DeviceStateChanged(ieee, delta)
		}
		e.events.Emit(Event{
			Type:      EventStateChanged,
			IEEE:      ieee,
			Data:      map[string]any{"delta": delta, "fast_path": true},
			Timestamp: time.Now(),
		})
	}()
	return delta
}

func (e *Engine) flush(ieee string) {
	e.mu.Lock()
	p, ok := e.pending[ieee]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.pending, ieee)
	d, exists := e.devices[ieee]
	if !exists {
		e.mu.Unlock()
		return
	}
	full := make(map[string]any, len(d.State))
	for k, v := range d.State {
		full[k] = v
	}
	safeName := SafeName(d.Name())
	pub := e.publisher
	dc := e.deltas
	e.mu.Unlock()

	if pub != nil {
		pub.PublishState(ieee, safeName, full)
	}
	if dc != nil {
		dc.DeviceStateChanged(ieee, p.delta)
	}
	e.events.Emit(Event{
		Type:      EventStateChanged,
		IEEE:      ieee,
		Data:      map[string]any{"delta": p.delta},
		Timestamp: time.Now(),
	})
}

// mergeState applies partial into d.State and returns the changed keys.
// Caller holds the engine lock.
func mergeState(d *Device, partial map[string]any) map[string]any {
	delta := make(map[string]any)
	for k, v := range partial {
		nv := normalizeValue(v)
		if old, ok := d.State[k]; ok && valueEqual(old, nv) {
			continue
		}
		d.State[k] = nv
		delta[k] = nv
	}
	return delta
}

// MarkReceive records traffic from a device: advances last_seen, restores
// availability and surfaces link quality as state.
func (e *Engine) MarkReceive(ieee string, lqi uint8, hasLQI bool) {
	e.mu.Lock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.Unlock()
		return
	}
	d.LastSeen = time.Now().UnixMilli()
	d.commandFailures = 0
	becameAvailable := !d.Available
	d.Available = true
	safeName := SafeName(d.Name())
	pub := e.publisher
	e.mu.Unlock()

	if becameAvailable {
		if pub != nil {
			pub.PublishAvailability(ieee, safeName, true)
		}
		e.events.Emit(Event{Type: EventAvailability, IEEE: ieee, Data: map[string]any{"available": true}, Timestamp: time.Now()})
	}
	if hasLQI {
		e.UpdateState(ieee, map[string]any{"linkquality": int64(lqi)})
	}
}

// SetAvailable sets the availability flag explicitly.
func (e *Engine) SetAvailable(ieee string, available bool) {
	e.mu.Lock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.Unlock()
		return
	}
	changed := d.Available != available
	d.Available = available
	if available {
		d.commandFailures = 0
	}
	safeName := SafeName(d.Name())
	pub := e.publisher
	e.mu.Unlock()

	if !changed {
		return
	}
	if pub != nil {
		pub.PublishAvailability(ieee, safeName, available)
	}
	e.events.Emit(Event{Type: EventAvailability, IEEE: ieee, Data: map[string]any{"available": available}, Timestamp: time.Now()})
}

// MarkAllUnavailable flags every device unavailable; used on radio resume
// until each device's first packet.
func (e *Engine) MarkAllUnavailable() {
	e.mu.RLock()
	ieees := make([]string, 0, len(e.devices))
	for ieee := range e.devices {
		ieees = append(ieees, ieee)
	}
	e.mu.RUnlock()
	for _, ieee := range ieees {
		e.SetAvailable(ieee, false)
	}
}

// SendCommand routes a normalised command to the first endpoint handler
// exposing the matching command surface. endpointID 0 selects automatically.
func (e *Engine) SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) CommandResult {
	e.mu.RLock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.RUnlock()
		return Failed(fmt.Errorf("%s: %w", ieee, ErrNotFound))
	}
	handlers := commandHandlersLocked(d, endpointID)
	e.mu.RUnlock()

	res := dispatchCommand(ctx, handlers, command, value)
	e.recordCommandResult(ieee, res)
	return res
}

// commandHandlersLocked collects candidate handlers in endpoint order.
func commandHandlersLocked(d *Device, endpointID uint8) []Handler {
	ids := make([]int, 0, len(d.Endpoints))
	for id := range d.Endpoints {
		if endpointID != 0 && id != endpointID {
			continue
		}
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var handlers []Handler
	for _, id := range ids {
		ep := d.Endpoints[uint8(id)]
		clusters := make([]int, 0, len(ep.Handlers))
		for c := range ep.Handlers {
			clusters = append(clusters, int(c))
		}
		sort.Ints(clusters)
		for _, c := range clusters {
			handlers = append(handlers, ep.Handlers[uint16(c)])
		}
	}
	return handlers
}

func dispatchCommand(ctx context.Context, handlers []Handler, command string, value any) CommandResult {
	switch command {
	case "on":
		for _, h := range handlers {
			if s, ok := h.(OnOffCommands); ok {
				return s.On(ctx)
			}
		}
	case "off":
		for _, h := range handlers {
			if s, ok := h.(OnOffCommands); ok {
				return s.Off(ctx)
			}
		}
	case "toggle":
		for _, h := range handlers {
			if s, ok := h.(OnOffCommands); ok {
				return s.Toggle(ctx)
			}
		}
	case "brightness":
		for _, h := range handlers {
			if s, ok := h.(LevelCommands); ok {
				v, err := toInt(value)
				if err != nil {
					return Failed(fmt.Errorf("brightness: %w", err))
				}
				return s.MoveToLevel(ctx, v)
			}
		}
	case "color_temp":
		for _, h := range handlers {
			if s, ok := h.(ColorCommands); ok {
				v, err := toInt(value)
				if err != nil {
					return Failed(fmt.Errorf("color_temp: %w", err))
				}
				return s.MoveToColorTemp(ctx, v)
			}
		}
	case "open":
		for _, h := range handlers {
			if s, ok := h.(CoverCommands); ok {
				return s.Open(ctx)
			}
		}
	case "close":
		for _, h := range handlers {
			if s, ok := h.(CoverCommands); ok {
				return s.Close(ctx)
			}
		}
	case "stop":
		for _, h := range handlers {
			if s, ok := h.(CoverCommands); ok {
				return s.Stop(ctx)
			}
		}
	case "position":
		for _, h := range handlers {
			if s, ok := h.(CoverCommands); ok {
				v, err := toInt(value)
				if err != nil {
					return Failed(fmt.Errorf("position: %w", err))
				}
				return s.SetPosition(ctx, v)
			}
		}
	case "identify":
		for _, h := range handlers {
			if s, ok := h.(IdentifyCommands); ok {
				seconds := uint16(5)
				if v, err := toInt(value); err == nil && v > 0 {
					seconds = uint16(v)
				}
				return s.Identify(ctx, seconds)
			}
		}
	default:
		return Failed(fmt.Errorf("command %q: %w", command, ErrUnsupported))
	}
	return Failed(fmt.Errorf("command %q: no handler: %w", command, ErrUnsupported))
}

// toInt coerces a command value, which arrives as a JSON-decoded number or a
// native integer from internal callers.
func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case uint8:
		return int(t), nil
	case uint16:
		return int(t), nil
	case uint32:
		return int(t), nil
	case float64:
		return int(t), nil
	}
	return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
}

func (e *Engine) recordCommandResult(ieee string, res CommandResult) {
	e.mu.Lock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.Unlock()
		return
	}
	if res.Success {
		d.commandFailures = 0
		e.mu.Unlock()
		return
	}
	d.commandFailures++
	tooMany := d.commandFailures >= maxCommandFailures && d.Available
	e.mu.Unlock()

	if tooMany {
		e.log.Warn().Str("ieee", ieee).Int("failures", maxCommandFailures).Msg("marking device unavailable after consecutive command failures")
		e.SetAvailable(ieee, false)
	}
}

// ConfigureDevice runs Configure on every handler of the device, tracking
// the handler lifecycle. Failures leave the handler degraded; it is retried
// on the next reconnect.
func (e *Engine) ConfigureDevice(ctx context.Context, ieee string) error {
	e.mu.RLock()
	d, ok := e.devices[ieee]
	if !ok {
		e.mu.RUnlock()
		return fmt.Errorf("configure %s: %w", ieee, ErrNotFound)
	}
	type job struct {
		key string
		h   Handler
	}
	var jobs []job
	for _, ep := range d.Endpoints {
		for cluster, h := range ep.Handlers {
			jobs = append(jobs, job{key: handlerKey(ieee, ep.ID, cluster), h: h})
		}
	}
	e.mu.RUnlock()

	var failed int
	for _, j := range jobs {
		status := "active"
		if err := j.h.Configure(ctx); err != nil {
			status = "degraded"
			failed++
			e.log.Warn().Str("ieee", ieee).Str("handler", j.h.Name()).Err(err).Msg("handler configure failed")
		}
		e.mu.Lock()
		e.configStatus[j.key] = status
		e.mu.Unlock()
	}
	if failed > 0 {
		return fmt.Errorf("configure %s: %d handler(s) degraded", ieee, failed)
	}
	return nil
}

// HandlerStatuses returns the lifecycle state of each handler of a device.
func (e *Engine) HandlerStatuses(ieee string) map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string)
	prefix := ieee + "/"
	for k, v := range e.configStatus {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out
}

// HandlerFor resolves the handler for an inbound frame.
func (e *Engine) HandlerFor(ieee string, endpoint uint8, cluster uint16) (Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	if !ok {
		return nil, false
	}
	ep, ok := d.Endpoints[endpoint]
	if !ok {
		return nil, false
	}
	h, ok := ep.Handlers[cluster]
	return h, ok
}

// DiscoveryConfigs collects every auto-discovery fragment the device's
// handlers contribute, ordered by endpoint then cluster.
func (e *Engine) DiscoveryConfigs(ieee string) []DiscoveryConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[ieee]
	if !ok {
		return nil
	}

	epIDs := make([]int, 0, len(d.Endpoints))
	for id := range d.Endpoints {
		epIDs = append(epIDs, int(id))
	}
	sort.Ints(epIDs)

	var out []DiscoveryConfig
	for _, epID := range epIDs {
		ep := d.Endpoints[uint8(epID)]
		clusters := make([]int, 0, len(ep.Handlers))
		for c := range ep.Handlers {
			clusters = append(clusters, int(c))
		}
		sort.Ints(clusters)
		for _, c := range clusters {
			out = append(out, ep.Handlers[uint16(c)].DiscoveryConfigs()...)
		}
	}
	return out
}

// ResolveIEEE maps a network address to a device IEEE.
func (e *Engine) ResolveIEEE(nwk uint16) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ieee, d := range e.devices {
		if d.NWK == nwk {
			return ieee, true
		}
	}
	return "", false
}

// RunAvailabilityLoop periodically expires devices that have been silent
// longer than 3 x their max report interval + 60 s.
func (e *Engine) RunAvailabilityLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.expireSilent()
		}
	}
}

func (e *Engine) expireSilent() {
	now := time.Now().UnixMilli()
	type expired struct{ ieee string }
	var out []expired

	e.mu.RLock()
	for ieee, d := range e.devices {
		if !d.Available {
			continue
		}
		maxInterval := int64(maxReportIntervalLocked(d))
		timeout := (3*maxInterval + availabilityGrace) * 1000
		if now-d.LastSeen > timeout {
			out = append(out, expired{ieee: ieee})
		}
	}
	e.mu.RUnlock()

	for _, x := range out {
		e.log.Info().Str("ieee", x.ieee).Msg("device silent past availability timeout")
		e.SetAvailable(x.ieee, false)
	}
}

func maxReportIntervalLocked(d *Device) uint16 {
	longest := uint16(0)
	for _, ep := range d.Endpoints {
		for _, h := range ep.Handlers {
			if rp, ok := h.(ReportingProvider); ok {
				if v := rp.MaxReportInterval(); v > longest {
					longest = v
				}
			}
		}
	}
	if longest == 0 {
		return defaultMaxReportInterval
	}
	return longest
}

func handlerKey(ieee string, endpoint uint8, cluster uint16) string {
	return fmt.Sprintf("%s/%d/0x%04x", ieee, endpoint, cluster)
}

// --- value normalisation ---

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}

func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
