package device

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler is the contract every cluster handler implements. A handler is
// scoped to one (device, endpoint, cluster) and translates between raw ZCL
// values and normalised state keys.
type Handler interface {
	// Cluster returns the handled cluster ID.
	Cluster() uint16

	// Name returns a short identifier used in logs and diagnostics.
	Name() string

	// AttributeUpdated translates a reported or read attribute value into
	// normalised state. It must have no side effect beyond emitting state.
	AttributeUpdated(attrID uint16, value any, ts time.Time)

	// ClusterCommand handles cluster-specific inbound frames.
	ClusterCommand(tsn uint8, commandID uint8, payload []byte)

	// Configure binds the cluster, writes reporting configuration and reads
	// one-time metadata. It is idempotent and retried on every reconnect.
	Configure(ctx context.Context) error

	// Poll returns the attributes to read opportunistically.
	Poll() []uint16

	// DiscoveryConfigs returns auto-discovery fragments for this cluster.
	DiscoveryConfigs() []DiscoveryConfig
}

// Optional command surfaces, discovered by type assertion.

// OnOffCommands is implemented by handlers that can switch a load.
type OnOffCommands interface {
	On(ctx context.Context) CommandResult
	Off(ctx context.Context) CommandResult
	Toggle(ctx context.Context) CommandResult
}

// LevelCommands is implemented by handlers that can dim. Percent is 0-100.
type LevelCommands interface {
	MoveToLevel(ctx context.Context, percent int) CommandResult
}

// ColorCommands is implemented by handlers that can change color temperature.
// The value is mireds; values above 1000 are interpreted as kelvin.
type ColorCommands interface {
	MoveToColorTemp(ctx context.Context, value int) CommandResult
}

// CoverCommands is implemented by window covering handlers. Position is the
// normalised percentage where 100 is fully open.
type CoverCommands interface {
	Open(ctx context.Context) CommandResult
	Close(ctx context.Context) CommandResult
	Stop(ctx context.Context) CommandResult
	SetPosition(ctx context.Context, position int) CommandResult
}

// IdentifyCommands is implemented by handlers that can flash the device.
type IdentifyCommands interface {
	Identify(ctx context.Context, seconds uint16) CommandResult
}

// ReportingProvider exposes the reporting intervals a handler configures;
// the engine derives availability timeouts from the max intervals.
type ReportingProvider interface {
	MaxReportInterval() uint16
}

// HandlerRegistry creates handlers for clusters. Implemented by the
// handlers package; unknown clusters receive a passthrough handler.
type HandlerRegistry interface {
	Create(b *Binding) Handler
}

// Binding ties a handler to its device, endpoint and radio scope. Handlers
// embed it via BaseHandler and use Emit to push normalised state.
type Binding struct {
	Device    *Device
	Endpoint  *Endpoint
	ClusterID uint16
	Client    *ClusterClient
	Log       zerolog.Logger

	engine *Engine
}

// Emit merges a partial state map into the device through the engine.
// Multi-endpoint devices get per-endpoint suffixed keys; endpoint 1 mirrors
// its keys unsuffixed as the device default.
func (b *Binding) Emit(partial map[string]any) {
	if b.engine == nil || len(partial) == 0 {
		return
	}
	b.engine.UpdateState(b.Device.IEEE, b.scopeKeys(partial))
}

func (b *Binding) scopeKeys(partial map[string]any) map[string]any {
	if !b.multiEndpoint() {
		return partial
	}
	scoped := make(map[string]any, len(partial)*2)
	for k, v := range partial {
		scoped[endpointKey(k, b.Endpoint.ID)] = v
		if b.Endpoint.ID == 1 {
			scoped[k] = v
		}
	}
	return scoped
}

func (b *Binding) multiEndpoint() bool {
	return len(b.Device.Endpoints) > 1
}

// SetDeviceInfo records identification fields read by the Basic handler.
func (b *Binding) SetDeviceInfo(manufacturer, model, swVersion, powerSource string) {
	if b.engine == nil {
		return
	}
	b.engine.setDeviceInfo(b.Device.IEEE, manufacturer, model, swVersion, powerSource)
}

func endpointKey(name string, ep uint8) string {
	return name + "_" + itoa(ep)
}

func itoa(v uint8) string {
	if v == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = '0' + v%10
		v /= 10
	}
	return string(buf[i:])
}

// BaseHandler provides no-op defaults for the Handler contract. Concrete
// handlers embed it and override what they need.
type BaseHandler struct {
	*Binding
}

func (h BaseHandler) Cluster() uint16                         { return h.Binding.ClusterID }
func (h BaseHandler) AttributeUpdated(uint16, any, time.Time) {}
func (h BaseHandler) ClusterCommand(uint8, uint8, []byte)     {}
func (h BaseHandler) Configure(context.Context) error         { return nil }
func (h BaseHandler) Poll() []uint16                          { return nil }
func (h BaseHandler) DiscoveryConfigs() []DiscoveryConfig     { return nil }
