// Package zones implements RF-based presence detection: link-quality samples
// harvested from normal Zigbee traffic are compared against per-link
// baselines, and a zone reports occupancy when enough of its links deviate
// at once. Moving bodies absorb and reflect 2.4 GHz, so presence shows up as
// RSSI deviation without any dedicated sensor.
package zones

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Zone tuning defaults, applied when a create request omits them.
const (
	DefaultDeviationThreshold = 2.5
	DefaultVarianceThreshold  = 4.0
	DefaultMinLinks           = 2
	DefaultCalibrationTime    = 120 // seconds
	DefaultClearDelay         = 30  // seconds
)

const sweepInterval = 5 * time.Second

// Config is a zone's stored configuration.
type Config struct {
	Name               string   `json:"name"`
	DeviceIEEEs        []string `json:"device_ieees"`
	DeviationThreshold float64  `json:"deviation_threshold"`
	VarianceThreshold  float64  `json:"variance_threshold"`
	MinLinksTriggered  int      `json:"min_links_triggered"`
	CalibrationTime    int      `json:"calibration_time"` // seconds
	ClearDelay         int      `json:"clear_delay"`      // seconds
	MQTTTopicOverride  string   `json:"mqtt_topic_override,omitempty"`
}

// UpdateRequest is a partial zone configuration update.
type UpdateRequest struct {
	DeviationThreshold *float64 `json:"deviation_threshold,omitempty"`
	VarianceThreshold  *float64 `json:"variance_threshold,omitempty"`
	MinLinksTriggered  *int     `json:"min_links_triggered,omitempty"`
	ClearDelay         *int     `json:"clear_delay,omitempty"`
	MQTTTopicOverride  *string  `json:"mqtt_topic_override,omitempty"`
}

// LinkStatus is the per-link view embedded in a zone status.
type LinkStatus struct {
	Link      string  `json:"link"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
	LastRSSI  float64 `json:"last_rssi"`
	LastLQI   int     `json:"last_lqi"`
	LastSeen  float64 `json:"last_seen,omitempty"` // unix seconds
	Samples   int     `json:"samples"`
	Ready     bool    `json:"ready"`
	Triggered bool    `json:"triggered"`
}

// Status is a zone snapshot for the API.
type Status struct {
	Config
	Occupied             bool         `json:"occupied"`
	Calibrating          bool         `json:"calibrating"`
	CalibrationRemaining float64      `json:"calibration_remaining,omitempty"` // seconds
	TriggeredLinks       []string     `json:"triggered_links"`
	Links                []LinkStatus `json:"links"`
	LastTriggered        float64      `json:"last_triggered,omitempty"` // unix seconds
	StateTopic           string       `json:"state_topic"`
}

// LinkSample is the most recent sample recorded for a directed link.
type LinkSample struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	RSSI      int     `json:"rssi"`
	LQI       int     `json:"lqi"`
	Timestamp float64 `json:"timestamp"` // unix seconds
}

// DeviceSuggestion is one zone membership candidate.
type DeviceSuggestion struct {
	IEEE     string `json:"ieee"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	IsRouter bool   `json:"is_router"`
}

// DeviceDirectory is the slice of the device engine the zone manager needs.
type DeviceDirectory interface {
	Device(ieee string) (device.Device, bool)
	Devices() []device.Device
}

// ReportingRadio is the slice of the radio used to push reporting
// configuration onto zone members.
type ReportingRadio interface {
	Bind(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16) error
	ConfigureReporting(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, configs []zcl.ReportConfig) error
}

// Publisher pushes zone state and discovery payloads to MQTT. Topics are
// absolute. A nil payload clears the retained topic.
type Publisher interface {
	PublishJSON(topic string, payload map[string]any, retain bool)
}

// Manager owns the zone set and the global link table. Zones are in-memory:
// they are cheap to recreate and their baselines must be relearned after a
// restart anyway.
type Manager struct {
	devices   DeviceDirectory
	radio     ReportingRadio
	baseTopic string
	log       zerolog.Logger

	mu            sync.RWMutex
	zones         map[string]*Zone
	deviceToZones map[string]map[string]bool
	links         map[string]LinkSample
	publisher     Publisher
}

// NewManager creates a zone manager publishing under baseTopic.
func NewManager(devices DeviceDirectory, radio ReportingRadio, baseTopic string, log zerolog.Logger) *Manager {
	return &Manager{
		devices:       devices,
		radio:         radio,
		baseTopic:     baseTopic,
		log:           log.With().Str("component", "zones").Logger(),
		zones:         make(map[string]*Zone),
		deviceToZones: make(map[string]map[string]bool),
		links:         make(map[string]LinkSample),
	}
}

// SetPublisher wires the MQTT leg. A nil publisher disables publishing.
func (m *Manager) SetPublisher(p Publisher) {
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// CreateZone validates, defaults and registers a new zone, kicks off
// aggressive reporting for its members and announces it to Home Assistant.
func (m *Manager) CreateZone(cfg Config) (Status, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return Status{}, fmt.Errorf("zone name is required: %w", device.ErrValidation)
	}
	cfg.DeviceIEEEs = normalizeIEEEs(cfg.DeviceIEEEs)
	if len(cfg.DeviceIEEEs) < 2 {
		return Status{}, fmt.Errorf("zone requires at least 2 devices: %w", device.ErrValidation)
	}
	if cfg.DeviationThreshold <= 0 {
		cfg.DeviationThreshold = DefaultDeviationThreshold
	}
	if cfg.VarianceThreshold <= 0 {
		cfg.VarianceThreshold = DefaultVarianceThreshold
	}
	if cfg.MinLinksTriggered <= 0 {
		cfg.MinLinksTriggered = DefaultMinLinks
	}
	if cfg.CalibrationTime < 0 {
		cfg.CalibrationTime = 0
	}
	if cfg.ClearDelay < 0 {
		cfg.ClearDelay = 0
	}

	var unknown []string
	for _, ieee := range cfg.DeviceIEEEs {
		if _, ok := m.devices.Device(ieee); !ok {
			unknown = append(unknown, ieee)
		}
	}
	if len(unknown) > 0 {
		m.log.Warn().Str("zone", cfg.Name).Strs("ieees", unknown).Msg("zone references unknown devices")
	}

	z := newZone(cfg, time.Now())

	m.mu.Lock()
	if _, exists := m.zones[cfg.Name]; exists {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("zone %q already exists: %w", cfg.Name, device.ErrValidation)
	}
	m.zones[cfg.Name] = z
	m.reindexLocked()
	status := m.statusLocked(z)
	pub := m.publisher
	m.mu.Unlock()

	m.log.Info().Str("zone", cfg.Name).Int("devices", len(cfg.DeviceIEEEs)).
		Int("calibration_s", cfg.CalibrationTime).Msg("zone created")

	if pub != nil {
		topic, payload := m.discoveryMessage(cfg)
		pub.PublishJSON(topic, payload, true)
	}
	go m.configureZoneReporting(cfg.DeviceIEEEs)

	return status, nil
}

// Zones lists all zones.
func (m *Manager) Zones() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, m.statusLocked(z))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Zone returns one zone by name.
func (m *Manager) Zone(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[name]
	if !ok {
		return Status{}, false
	}
	return m.statusLocked(z), true
}

// ZoneCount reports the number of configured zones.
func (m *Manager) ZoneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}

// UpdateZone applies a partial configuration update.
func (m *Manager) UpdateZone(name string, upd UpdateRequest) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zones[name]
	if !ok {
		return Status{}, fmt.Errorf("zone %q: %w", name, device.ErrNotFound)
	}
	if upd.DeviationThreshold != nil {
		z.config.DeviationThreshold = *upd.DeviationThreshold
	}
	if upd.VarianceThreshold != nil {
		z.config.VarianceThreshold = *upd.VarianceThreshold
	}
	if upd.MinLinksTriggered != nil {
		z.config.MinLinksTriggered = *upd.MinLinksTriggered
	}
	if upd.ClearDelay != nil {
		z.config.ClearDelay = *upd.ClearDelay
	}
	if upd.MQTTTopicOverride != nil {
		z.config.MQTTTopicOverride = *upd.MQTTTopicOverride
	}

	m.log.Info().Str("zone", name).Msg("zone configuration updated")
	return m.statusLocked(z), nil
}

// DeleteZone removes a zone, clears its discovery entry and restores
// baseline reporting on members no other zone still needs.
func (m *Manager) DeleteZone(name string) error {
	m.mu.Lock()
	z, ok := m.zones[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("zone %q: %w", name, device.ErrNotFound)
	}
	delete(m.zones, name)
	m.reindexLocked()

	var restore []string
	for _, ieee := range z.config.DeviceIEEEs {
		if len(m.deviceToZones[ieee]) == 0 {
			restore = append(restore, ieee)
		}
	}
	cfg := z.config
	pub := m.publisher
	m.mu.Unlock()

	m.log.Info().Str("zone", name).Msg("zone deleted")
	if pub != nil {
		topic, _ := m.discoveryMessage(cfg)
		pub.PublishJSON(topic, nil, true)
	}
	if len(restore) > 0 {
		go m.restoreZoneReporting(restore)
	}
	return nil
}

// Recalibrate drops the zone's baselines, restarts its calibration window
// and refreshes reporting configuration on its members.
func (m *Manager) Recalibrate(name string) (Status, error) {
	m.mu.Lock()
	z, ok := m.zones[name]
	if !ok {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("zone %q: %w", name, device.ErrNotFound)
	}
	changed := z.recalibrate(time.Now())
	status := m.statusLocked(z)
	var update zonePublish
	if changed {
		update = m.statePublishLocked(z)
	}
	pub := m.publisher
	ieees := append([]string(nil), z.config.DeviceIEEEs...)
	m.mu.Unlock()

	m.log.Info().Str("zone", name).Msg("zone recalibrating")
	if changed && pub != nil {
		pub.PublishJSON(update.topic, update.payload, true)
	}
	go m.configureZoneReporting(ieees)
	return status, nil
}

// ModifyDevices adds and removes zone members. Any membership change
// triggers a recalibration.
func (m *Manager) ModifyDevices(name string, add, remove []string) (Status, error) {
	add = normalizeIEEEs(add)
	remove = normalizeIEEEs(remove)

	m.mu.Lock()
	z, ok := m.zones[name]
	if !ok {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("zone %q: %w", name, device.ErrNotFound)
	}

	changed := false
	members := make(map[string]bool, len(z.config.DeviceIEEEs))
	for _, ieee := range z.config.DeviceIEEEs {
		members[ieee] = true
	}
	var added []string
	for _, ieee := range add {
		if !members[ieee] {
			members[ieee] = true
			z.config.DeviceIEEEs = append(z.config.DeviceIEEEs, ieee)
			added = append(added, ieee)
			changed = true
		}
	}
	for _, ieee := range remove {
		if members[ieee] {
			delete(members, ieee)
			z.config.DeviceIEEEs = removeString(z.config.DeviceIEEEs, ieee)
			changed = true
		}
	}

	var restore []string
	if changed {
		z.recalibrate(time.Now())
		m.reindexLocked()
		for _, ieee := range remove {
			if len(m.deviceToZones[ieee]) == 0 {
				restore = append(restore, ieee)
			}
		}
	}
	status := m.statusLocked(z)
	m.mu.Unlock()

	if changed {
		m.log.Info().Str("zone", name).Strs("added", added).Strs("removed", remove).Msg("zone membership changed")
		if len(added) > 0 {
			go m.configureZoneReporting(added)
		}
		if len(restore) > 0 {
			go m.restoreZoneReporting(restore)
		}
	}
	return status, nil
}

// SuggestDevices lists devices whose friendly name contains the room name.
func (m *Manager) SuggestDevices(room string) []DeviceSuggestion {
	needle := strings.ToLower(strings.TrimSpace(room))
	var out []DeviceSuggestion
	for _, dev := range m.devices.Devices() {
		if !strings.Contains(strings.ToLower(dev.Name()), needle) {
			continue
		}
		out = append(out, DeviceSuggestion{
			IEEE:     dev.IEEE,
			Name:     dev.Name(),
			Model:    dev.Model,
			IsRouter: dev.Protocol == device.ProtocolZigbee && !strings.EqualFold(dev.PowerSource, "battery"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RecordLinkQuality feeds one link sample into the global link table and
// every zone either endpoint belongs to. Called from the packet intake.
func (m *Manager) RecordLinkQuality(sourceIEEE, targetIEEE string, rssi, lqi int) {
	key := sourceIEEE + ">" + targetIEEE
	now := time.Now()

	m.mu.Lock()
	m.links[key] = LinkSample{
		Source:    sourceIEEE,
		Target:    targetIEEE,
		RSSI:      rssi,
		LQI:       lqi,
		Timestamp: float64(now.UnixNano()) / 1e9,
	}

	var updates []zonePublish
	for zoneName := range m.zonesForDeviceLocked(sourceIEEE, targetIEEE) {
		z := m.zones[zoneName]
		if z == nil {
			continue
		}
		if z.addSample(key, float64(rssi), lqi, now) {
			updates = append(updates, m.statePublishLocked(z))
			m.log.Info().Str("zone", zoneName).Bool("occupied", z.occupied).Msg("zone occupancy changed")
		}
	}
	pub := m.publisher
	m.mu.Unlock()

	if pub == nil {
		return
	}
	for _, u := range updates {
		pub.PublishJSON(u.topic, u.payload, true)
	}
}

// Links returns the most recent sample for every observed link.
func (m *Manager) Links() []LinkSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LinkSample, 0, len(m.links))
	for _, s := range m.links {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Run drives time-based transitions (calibration expiry, occupancy clear on
// silent zones) until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var updates []zonePublish
	for name, z := range m.zones {
		if z.evaluate(now) {
			updates = append(updates, m.statePublishLocked(z))
			m.log.Info().Str("zone", name).Bool("occupied", z.occupied).Msg("zone occupancy changed")
		}
	}
	pub := m.publisher
	m.mu.Unlock()

	if pub == nil {
		return
	}
	for _, u := range updates {
		pub.PublishJSON(u.topic, u.payload, true)
	}
}

func (m *Manager) zonesForDeviceLocked(ieees ...string) map[string]bool {
	out := make(map[string]bool)
	for _, ieee := range ieees {
		for name := range m.deviceToZones[ieee] {
			out[name] = true
		}
	}
	return out
}

func (m *Manager) reindexLocked() {
	m.deviceToZones = make(map[string]map[string]bool, len(m.deviceToZones))
	for name, z := range m.zones {
		for _, ieee := range z.config.DeviceIEEEs {
			set := m.deviceToZones[ieee]
			if set == nil {
				set = make(map[string]bool)
				m.deviceToZones[ieee] = set
			}
			set[name] = true
		}
	}
}

func (m *Manager) statusLocked(z *Zone) Status {
	now := time.Now()
	st := Status{
		Config:         z.config,
		Occupied:       z.occupied,
		Calibrating:    z.calibrating,
		TriggeredLinks: z.triggeredLinks(),
		StateTopic:     m.stateTopic(z.config),
	}
	st.Config.DeviceIEEEs = append([]string(nil), z.config.DeviceIEEEs...)
	if st.TriggeredLinks == nil {
		st.TriggeredLinks = []string{}
	}
	if z.calibrating {
		if remaining := z.calibrationWindow() - now.Sub(z.calibrationStart); remaining > 0 {
			st.CalibrationRemaining = remaining.Seconds()
		}
	}
	if !z.lastTriggered.IsZero() {
		st.LastTriggered = float64(z.lastTriggered.UnixNano()) / 1e9
	}

	st.Links = make([]LinkStatus, 0, len(z.baselines))
	for key, b := range z.baselines {
		ls := LinkStatus{
			Link:      key,
			Mean:      b.mean,
			StdDev:    b.stddev,
			LastRSSI:  b.lastRSSI,
			LastLQI:   b.lastLQI,
			Samples:   b.count,
			Ready:     b.ready,
			Triggered: b.triggered,
		}
		if !b.lastSeen.IsZero() {
			ls.LastSeen = float64(b.lastSeen.UnixNano()) / 1e9
		}
		st.Links = append(st.Links, ls)
	}
	sort.Slice(st.Links, func(i, j int) bool { return st.Links[i].Link < st.Links[j].Link })
	return st
}

type zonePublish struct {
	topic   string
	payload map[string]any
}

func (m *Manager) statePublishLocked(z *Zone) zonePublish {
	return zonePublish{
		topic: m.stateTopic(z.config),
		payload: map[string]any{
			"zone":            z.config.Name,
			"occupancy":       z.occupied,
			"triggered_links": z.triggeredLinks(),
			"timestamp":       float64(time.Now().UnixNano()) / 1e9,
		},
	}
}

func (m *Manager) stateTopic(cfg Config) string {
	if cfg.MQTTTopicOverride != "" {
		return cfg.MQTTTopicOverride
	}
	return m.baseTopic + "/zone/" + safeName(cfg.Name)
}

func (m *Manager) discoveryMessage(cfg Config) (string, map[string]any) {
	id := "zone_" + strings.ToLower(safeName(cfg.Name))
	topic := fmt.Sprintf("homeassistant/binary_sensor/%s/occupancy/config", id)
	payload := map[string]any{
		"name":           cfg.Name + " Occupancy",
		"unique_id":      id + "_occupancy",
		"state_topic":    m.stateTopic(cfg),
		"device_class":   "occupancy",
		"value_template": "{{ 'ON' if value_json.occupancy else 'OFF' }}",
		"device": map[string]any{
			"identifiers": []string{id},
			"name":        "Zone " + cfg.Name,
		},
	}
	return topic, payload
}

func safeName(name string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(name)
}

func normalizeIEEEs(ieees []string) []string {
	out := make([]string, 0, len(ieees))
	seen := make(map[string]bool, len(ieees))
	for _, ieee := range ieees {
		n := strings.ToLower(strings.TrimSpace(ieee))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func removeString(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
