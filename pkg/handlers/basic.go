package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
)

// Basic cluster (0x0000) attribute IDs.
const (
	attrManufacturer uint16 = 0x0004
	attrModel        uint16 = 0x0005
	attrPowerSource  uint16 = 0x0007
	attrSWBuildID    uint16 = 0x4000
)

var powerSources = map[int64]string{
	0x00: "Unknown",
	0x01: "Mains (Single Phase)",
	0x02: "Mains (3 Phase)",
	0x03: "Battery",
	0x04: "DC Source",
	0x05: "Emergency Mains (Constant)",
	0x06: "Emergency Mains (Transferring)",
}

// Basic translates device identification attributes into registry fields.
type Basic struct {
	device.BaseHandler
}

func newBasic(b *device.Binding) device.Handler {
	return &Basic{device.BaseHandler{Binding: b}}
}

func (h *Basic) Name() string { return "basic" }

func (h *Basic) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	switch attrID {
	case attrManufacturer:
		if s, ok := value.(string); ok && s != "" {
			h.SetDeviceInfo(s, "", "", "")
		}
	case attrModel:
		if s, ok := value.(string); ok && s != "" {
			h.SetDeviceInfo("", s, "", "")
		}
	case attrSWBuildID:
		if s, ok := value.(string); ok && s != "" {
			h.SetDeviceInfo("", "", s, "")
		}
	case attrPowerSource:
		v, ok := asInt(value)
		if !ok {
			return
		}
		name, known := powerSources[v]
		if !known {
			name = fmt.Sprintf("Unknown(%d)", v)
		}
		h.SetDeviceInfo("", "", "", name)
		h.Emit(map[string]any{"power_source": name})
	}
}

// Configure reads identification once; Basic attributes are static so the
// cluster is neither bound nor configured for reporting.
func (h *Basic) Configure(ctx context.Context) error {
	vals, err := h.Client.Read(ctx, attrManufacturer, attrModel, attrPowerSource, attrSWBuildID)
	if err != nil {
		return fmt.Errorf("read identification: %w", err)
	}
	for id, v := range vals {
		h.AttributeUpdated(id, v, time.Now())
	}
	return nil
}

func (h *Basic) Poll() []uint16 {
	return []uint16{attrManufacturer, attrModel, attrPowerSource, attrSWBuildID}
}

// Identify cluster (0x0003). Pure command sink.
type Identify struct {
	device.BaseHandler
}

func newIdentify(b *device.Binding) device.Handler {
	return &Identify{device.BaseHandler{Binding: b}}
}

func (h *Identify) Name() string { return "identify" }

// Identify flashes the device for the given number of seconds.
func (h *Identify) Identify(ctx context.Context, seconds uint16) device.CommandResult {
	payload := []byte{byte(seconds), byte(seconds >> 8)}
	if err := h.Client.Command(ctx, 0x00, payload); err != nil {
		return device.Failed(fmt.Errorf("identify: %w", err))
	}
	h.Log.Info().Uint16("seconds", seconds).Msg("identify requested")
	return device.OK()
}
