package gateway

import (
	"context"

	"github.com/urmzd/zigman/pkg/device"
)

// MatterBridge is the slice of the Matter adapter the directory routes to.
type MatterBridge interface {
	Devices() []device.Device
	Device(ieee string) (device.Device, bool)
	Owns(ieee string) bool
	SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult
}

// Directory merges the Zigbee registry and the Matter bridge into the
// unified device list consumed by the API, the MQTT command intake and the
// automation engine.
type Directory struct {
	engine *device.Engine
	bridge MatterBridge
}

// NewDirectory creates the directory. Pass a nil bridge when no Matter
// server is configured.
func NewDirectory(engine *device.Engine, bridge MatterBridge) *Directory {
	return &Directory{engine: engine, bridge: bridge}
}

// Devices returns all known devices, Zigbee first.
func (d *Directory) Devices() []device.Device {
	out := d.engine.Devices()
	if d.bridge != nil {
		out = append(out, d.bridge.Devices()...)
	}
	return out
}

// Device returns a snapshot of one device from whichever side owns it.
func (d *Directory) Device(ieee string) (device.Device, bool) {
	if d.bridge != nil && d.bridge.Owns(ieee) {
		return d.bridge.Device(ieee)
	}
	return d.engine.Device(ieee)
}

// SendCommand routes a normalised command to the owning side.
func (d *Directory) SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult {
	if d.bridge != nil && d.bridge.Owns(ieee) {
		return d.bridge.SendCommand(ctx, ieee, command, value, endpointID)
	}
	return d.engine.SendCommand(ctx, ieee, command, value, endpointID)
}

// Actuators returns every device, from either side, that accepts commands.
func (d *Directory) Actuators() []device.Device {
	out := d.engine.Actuators()
	if d.bridge != nil {
		for _, dev := range d.bridge.Devices() {
			if device.HasActuatorCapability(dev.Capabilities()) {
				out = append(out, dev)
			}
		}
	}
	return out
}
