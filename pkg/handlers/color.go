package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Color Control cluster (0x0300) attribute IDs.
const (
	attrCurrentX  uint16 = 0x0003
	attrCurrentY  uint16 = 0x0004
	attrColorTemp uint16 = 0x0007
)

const cmdMoveToColorTemp uint8 = 0x0A

// Color handles the Color Control cluster for tunable and color lights.
type Color struct {
	device.BaseHandler
}

func newColor(b *device.Binding) device.Handler {
	return &Color{device.BaseHandler{Binding: b}}
}

func (h *Color) Name() string { return "color" }

func (h *Color) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	switch attrID {
	case attrCurrentX:
		h.Emit(map[string]any{"color_x": round4(raw / 65535)})
	case attrCurrentY:
		h.Emit(map[string]any{"color_y": round4(raw / 65535)})
	case attrColorTemp:
		h.Emit(map[string]any{"color_temp": int(raw)})
	}
}

func (h *Color) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:           attrCurrentX,
		DataType:         zcl.TypeUint16,
		MinInterval:      1,
		MaxInterval:      300,
		ReportableChange: 1,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Color) Poll() []uint16 {
	return []uint16{attrCurrentX, attrCurrentY, attrColorTemp}
}

func (h *Color) MaxReportInterval() uint16 { return 300 }

// MoveToColorTemp accepts mireds directly; values above 1000 are treated as
// kelvin and converted.
func (h *Color) MoveToColorTemp(ctx context.Context, value int) device.CommandResult {
	mireds := value
	if value > 1000 {
		mireds = 1000000 / value
	}
	if mireds <= 0 || mireds > 0xFFFF {
		return device.Failed(fmt.Errorf("color_temp %d out of range: %w", value, device.ErrValidation))
	}
	payload := []byte{
		byte(mireds), byte(mireds >> 8),
		byte(levelTransition), byte(levelTransition >> 8),
	}
	if err := h.Client.Command(ctx, cmdMoveToColorTemp, payload); err != nil {
		return device.Failed(fmt.Errorf("move to color temp: %w", err))
	}
	h.Emit(map[string]any{"color_temp": mireds})
	return device.OK()
}
