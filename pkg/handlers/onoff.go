package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

const attrOnOff uint16 = 0x0000

// OnOff cluster (0x0006) command IDs.
const (
	cmdOff    uint8 = 0x00
	cmdOn     uint8 = 0x01
	cmdToggle uint8 = 0x02
)

// OnOff handles switchable loads: lights, plugs, relays.
type OnOff struct {
	device.BaseHandler
}

func newOnOff(b *device.Binding) device.Handler {
	return &OnOff{device.BaseHandler{Binding: b}}
}

func (h *OnOff) Name() string { return "on_off" }

func (h *OnOff) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrOnOff {
		return
	}
	on, ok := asBool(value)
	if !ok {
		return
	}
	h.Emit(onOffState(on))
}

func onOffState(on bool) map[string]any {
	state := "OFF"
	if on {
		state = "ON"
	}
	return map[string]any{"state": state, "on": on}
}

func (h *OnOff) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:      attrOnOff,
		DataType:    zcl.TypeBool,
		MinInterval: 0,
		MaxInterval: 3600,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *OnOff) Poll() []uint16 { return []uint16{attrOnOff} }

func (h *OnOff) MaxReportInterval() uint16 { return 3600 }

func (h *OnOff) On(ctx context.Context) device.CommandResult {
	return h.send(ctx, cmdOn, onOffState(true))
}

func (h *OnOff) Off(ctx context.Context) device.CommandResult {
	return h.send(ctx, cmdOff, onOffState(false))
}

// Toggle has no optimistic update; the resulting state is reported back.
func (h *OnOff) Toggle(ctx context.Context) device.CommandResult {
	return h.send(ctx, cmdToggle, nil)
}

func (h *OnOff) send(ctx context.Context, commandID uint8, optimistic map[string]any) device.CommandResult {
	if err := h.Client.Command(ctx, commandID, nil); err != nil {
		return device.Failed(fmt.Errorf("on_off command 0x%02x: %w", commandID, err))
	}
	if optimistic != nil {
		h.Emit(optimistic)
	}
	return device.OK()
}

// DiscoveryConfigs advertises a light when the endpoint also dims or colors,
// otherwise a plain switch.
func (h *OnOff) DiscoveryConfigs() []device.DiscoveryConfig {
	component := "switch"
	base := "Switch"
	for _, c := range h.Endpoint.InClusters {
		if c == ClusterLevel || c == ClusterColor || c == ClusterLightLink {
			component = "light"
			base = "Light"
			break
		}
	}
	key := objectID(h.Binding, "state")
	return []device.DiscoveryConfig{{
		Component: component,
		ObjectID:  key,
		Config: map[string]any{
			"name":                 displayName(h.Binding, base),
			"state_value_template": valueTemplate(key),
			"payload_on":           "ON",
			"payload_off":          "OFF",
		},
	}}
}
