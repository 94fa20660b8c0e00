// Package types holds the request and response bodies of the HTTP API.
package types

import (
	"time"

	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/touchlink"
	"github.com/urmzd/zigman/pkg/zones"
)

// --- Request DTOs ---

// RenameDeviceRequest is the request body for PATCH /devices/:id
type RenameDeviceRequest struct {
	FriendlyName string `json:"friendly_name" binding:"required"`
}

// CommandRequest is the request body for POST /devices/:id/state. A bare
// state document ({"state":"ON"} or {"brightness":128}) is accepted as well
// and normalised into the same command vocabulary.
type CommandRequest struct {
	Command    string `json:"command"`
	Value      any    `json:"value,omitempty"`
	EndpointID uint8  `json:"endpoint_id,omitempty"`
}

// StartDiscoveryRequest is the request body for POST /discovery/start
type StartDiscoveryRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// ZoneDevicesRequest adds and removes zone members.
type ZoneDevicesRequest struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// TouchlinkRequest selects the radio channel for a touchlink operation.
// Channel 0 sweeps all Zigbee channels (11-26).
type TouchlinkRequest struct {
	Channel int `json:"channel"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status              string    `json:"status"`
	Radio               string    `json:"radio"`
	MQTT                string    `json:"mqtt"`
	Matter              string    `json:"matter"`
	Devices             int       `json:"devices"`
	PermitJoinRemaining int       `json:"permit_join_remaining"`
	UptimeSeconds       float64   `json:"uptime_seconds"`
	Timestamp           time.Time `json:"timestamp"`
}

// EndpointView describes one endpoint of a device. Cluster IDs are
// rendered as 0x-prefixed hex.
type EndpointView struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceType  uint16   `json:"device_type"`
	Role        string   `json:"role"`
	InClusters  []string `json:"in_clusters"`
	OutClusters []string `json:"out_clusters"`
}

// DeviceView combines device identity, endpoints and current state.
type DeviceView struct {
	IEEE         string            `json:"ieee"`
	NWK          uint16            `json:"nwk,omitempty"`
	Protocol     string            `json:"protocol"`
	FriendlyName string            `json:"friendly_name,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty"`
	Model        string            `json:"model,omitempty"`
	SWVersion    string            `json:"sw_version,omitempty"`
	PowerSource  string            `json:"power_source,omitempty"`
	Available    bool              `json:"available"`
	LastSeen     int64             `json:"last_seen,omitempty"` // unix milliseconds
	Capabilities []string          `json:"capabilities"`
	Endpoints    []EndpointView    `json:"endpoints,omitempty"`
	Handlers     map[string]string `json:"handlers,omitempty"`
	State        map[string]any    `json:"state,omitempty"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []DeviceView `json:"devices"`
	Count   int          `json:"count"`
}

// DeviceResponse is returned from GET /devices/:id
type DeviceResponse struct {
	Device DeviceView `json:"device"`
}

// StateResponse is returned from GET /devices/:id/state
type StateResponse struct {
	IEEE      string         `json:"ieee"`
	Name      string         `json:"name"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// CommandResponse is returned from POST /devices/:id/state
type CommandResponse struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Command   string         `json:"command"`
	State     map[string]any `json:"state,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StartDiscoveryResponse is returned from POST /discovery/start
type StartDiscoveryResponse struct {
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// StopDiscoveryResponse is returned from POST /discovery/stop
type StopDiscoveryResponse struct {
	Status string `json:"status"`
}

// RulesResponse is returned from GET /automations
type RulesResponse struct {
	Rules []automation.RuleView `json:"rules"`
	Count int                   `json:"count"`
}

// RuleResponse wraps a single automation rule.
type RuleResponse struct {
	Rule automation.Rule `json:"rule"`
}

// TraceResponse is returned from GET /automations/trace
type TraceResponse struct {
	Entries []automation.TraceEntry `json:"entries"`
	Count   int                     `json:"count"`
}

// AttributesResponse lists the rule-condition attributes of a device.
type AttributesResponse struct {
	IEEE       string                     `json:"ieee"`
	Attributes []automation.AttributeInfo `json:"attributes"`
}

// ActionsResponse lists the commands a device accepts as a rule target.
type ActionsResponse struct {
	IEEE     string   `json:"ieee"`
	Commands []string `json:"commands"`
}

// ActuatorView is a compact actuator listing entry.
type ActuatorView struct {
	IEEE         string   `json:"ieee"`
	Name         string   `json:"name"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
}

// ActuatorsResponse is returned from GET /automations/actuators
type ActuatorsResponse struct {
	Actuators []ActuatorView `json:"actuators"`
	Count     int            `json:"count"`
}

// ZonesResponse is returned from GET /zones
type ZonesResponse struct {
	Zones []zones.Status `json:"zones"`
	Count int            `json:"count"`
}

// ZoneResponse wraps a single zone snapshot.
type ZoneResponse struct {
	Zone zones.Status `json:"zone"`
}

// LinksResponse is the link-quality snapshot under /zones/links.
type LinksResponse struct {
	Links []zones.LinkSample `json:"links"`
	Count int                `json:"count"`
	Stats zones.IntakeStats  `json:"stats"`
}

// SuggestionsResponse lists zone membership candidates for a room.
type SuggestionsResponse struct {
	Room        string                   `json:"room"`
	Suggestions []zones.DeviceSuggestion `json:"suggestions"`
}

// TouchlinkResponse is returned from the touchlink operations.
type TouchlinkResponse struct {
	Status  string             `json:"status"`
	Devices []touchlink.Device `json:"devices"`
	Count   int                `json:"count"`
}

// SpectrumLatestResponse is returned from GET /spectrum
type SpectrumLatestResponse struct {
	Channels    map[int]int `json:"channels"`
	BestChannel int         `json:"best_channel"`
	Timestamp   int64       `json:"timestamp"` // unix seconds
}

// SpectrumHistoryResponse is returned from GET /spectrum/history
type SpectrumHistoryResponse struct {
	Records []db.SpectrumRecord `json:"records"`
	Hours   int                 `json:"hours"`
	Count   int                 `json:"count"`
}

// SpectrumChannelsResponse is returned from GET /spectrum/channels
type SpectrumChannelsResponse struct {
	Averages    map[int]float64 `json:"averages"`
	BestChannel int             `json:"best_channel"`
	Hours       int             `json:"hours"`
}

// PacketStatsResponse is returned from GET /stats/packets
type PacketStatsResponse struct {
	Devices      map[string]device.PacketStats `json:"devices"`
	QueueDropped uint64                        `json:"queue_dropped"`
}
