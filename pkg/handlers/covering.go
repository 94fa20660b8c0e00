package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Window Covering cluster (0x0102) attribute IDs.
const (
	attrCoveringType uint16 = 0x0000
	attrLiftPercent  uint16 = 0x0008
	attrTiltPercent  uint16 = 0x0009
)

// Window Covering command IDs.
const (
	cmdUpOpen          uint8 = 0x00
	cmdDownClose       uint8 = 0x01
	cmdCoverStop       uint8 = 0x02
	cmdGoToLiftPercent uint8 = 0x05
	cmdGoToTiltPercent uint8 = 0x08
)

var coveringTypes = map[int64]string{
	0x00: "rollershade",
	0x01: "rollershade_2_motor",
	0x02: "rollershade_exterior",
	0x03: "rollershade_exterior_2_motor",
	0x04: "drapery",
	0x05: "awning",
	0x06: "shutter",
	0x07: "tilt_blind_tilt_only",
	0x08: "tilt_blind_lift_and_tilt",
	0x09: "projector_screen",
}

// Covering handles blinds, shutters and curtains. The wire convention is
// inverted from the published one: on the wire 0 is open and 100 closed,
// while state and commands use 100 for fully open.
type Covering struct {
	device.BaseHandler
}

func newCovering(b *device.Binding) device.Handler {
	return &Covering{device.BaseHandler{Binding: b}}
}

func (h *Covering) Name() string { return "window_covering" }

func (h *Covering) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	switch attrID {
	case attrLiftPercent:
		raw, ok := asInt(value)
		if !ok {
			return
		}
		position := 100 - int(raw)
		h.Emit(map[string]any{
			"position":       position,
			"cover_position": position,
			"is_closed":      raw == 100,
			"is_open":        raw == 0,
		})
		h.Log.Debug().Int("position", position).Int64("raw", raw).Msg("cover position")
	case attrTiltPercent:
		raw, ok := asInt(value)
		if !ok {
			return
		}
		h.Emit(map[string]any{"tilt_position": int(raw)})
	case attrCoveringType:
		raw, ok := asInt(value)
		if !ok {
			return
		}
		name, known := coveringTypes[raw]
		if !known {
			name = fmt.Sprintf("unknown_%d", raw)
		}
		h.Emit(map[string]any{"cover_type": name})
	}
}

func (h *Covering) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx,
		zcl.ReportConfig{AttrID: attrLiftPercent, DataType: zcl.TypeUint8, MinInterval: 1, MaxInterval: 300, ReportableChange: 1},
		zcl.ReportConfig{AttrID: attrTiltPercent, DataType: zcl.TypeUint8, MinInterval: 1, MaxInterval: 300, ReportableChange: 1},
	)
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Covering) Poll() []uint16 {
	return []uint16{attrLiftPercent, attrTiltPercent}
}

func (h *Covering) MaxReportInterval() uint16 { return 300 }

func (h *Covering) Open(ctx context.Context) device.CommandResult {
	if err := h.Client.Command(ctx, cmdUpOpen, nil); err != nil {
		return device.Failed(fmt.Errorf("open: %w", err))
	}
	h.Emit(map[string]any{"is_closed": false})
	return device.OK()
}

func (h *Covering) Close(ctx context.Context) device.CommandResult {
	if err := h.Client.Command(ctx, cmdDownClose, nil); err != nil {
		return device.Failed(fmt.Errorf("close: %w", err))
	}
	h.Emit(map[string]any{"is_closed": true})
	return device.OK()
}

func (h *Covering) Stop(ctx context.Context) device.CommandResult {
	if err := h.Client.Command(ctx, cmdCoverStop, nil); err != nil {
		return device.Failed(fmt.Errorf("stop: %w", err))
	}
	return device.OK()
}

// SetPosition moves to a published position (100 = open); the wire value is
// the inverse.
func (h *Covering) SetPosition(ctx context.Context, position int) device.CommandResult {
	if position < 0 || position > 100 {
		return device.Failed(fmt.Errorf("position %d out of range: %w", position, device.ErrValidation))
	}
	raw := uint8(100 - position)
	if err := h.Client.Command(ctx, cmdGoToLiftPercent, []byte{raw}); err != nil {
		return device.Failed(fmt.Errorf("set position: %w", err))
	}
	h.Log.Info().Int("position", position).Uint8("raw", raw).Msg("cover position set")
	return device.OK()
}

// SetTilt moves the tilt to a percentage; tilt carries no inversion.
func (h *Covering) SetTilt(ctx context.Context, tilt int) device.CommandResult {
	if tilt < 0 || tilt > 100 {
		return device.Failed(fmt.Errorf("tilt %d out of range: %w", tilt, device.ErrValidation))
	}
	if err := h.Client.Command(ctx, cmdGoToTiltPercent, []byte{uint8(tilt)}); err != nil {
		return device.Failed(fmt.Errorf("set tilt: %w", err))
	}
	return device.OK()
}

func (h *Covering) DiscoveryConfigs() []device.DiscoveryConfig {
	key := objectID(h.Binding, "position")
	return []device.DiscoveryConfig{{
		Component: "cover",
		ObjectID:  objectID(h.Binding, "cover"),
		Config: map[string]any{
			"name":              displayName(h.Binding, "Window Cover"),
			"device_class":      "shutter",
			"position_template": valueTemplate(key),
			"position_open":     100,
			"position_closed":   0,
		},
	}}
}
