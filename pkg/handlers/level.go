package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

const attrCurrentLevel uint16 = 0x0000

// move_to_level_with_onoff also powers the load on when raising from zero.
const cmdMoveToLevelWithOnOff uint8 = 0x04

// Default transition time in tenths of a second.
const levelTransition uint16 = 5

// Level handles the Level Control cluster (0x0008).
type Level struct {
	device.BaseHandler
}

func newLevel(b *device.Binding) device.Handler {
	return &Level{device.BaseHandler{Binding: b}}
}

func (h *Level) Name() string { return "level" }

func (h *Level) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	if attrID != attrCurrentLevel {
		return
	}
	raw, ok := asFloat(value)
	if !ok {
		return
	}
	h.Emit(map[string]any{
		"brightness": int(raw),
		"level":      int(raw/2.54 + 0.5),
	})
}

func (h *Level) Configure(ctx context.Context) error {
	if err := h.Client.Bind(ctx); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	err := h.Client.ConfigureReporting(ctx, zcl.ReportConfig{
		AttrID:           attrCurrentLevel,
		DataType:         zcl.TypeUint8,
		MinInterval:      1,
		MaxInterval:      300,
		ReportableChange: 5,
	})
	if err != nil {
		return fmt.Errorf("configure reporting: %w", err)
	}
	return nil
}

func (h *Level) Poll() []uint16 { return []uint16{attrCurrentLevel} }

func (h *Level) MaxReportInterval() uint16 { return 300 }

// MoveToLevel dims to the given percentage (0-100).
func (h *Level) MoveToLevel(ctx context.Context, percent int) device.CommandResult {
	if percent < 0 || percent > 100 {
		return device.Failed(fmt.Errorf("level %d out of range: %w", percent, device.ErrValidation))
	}
	raw := uint8(float64(percent) * 2.54)
	payload := []byte{raw, byte(levelTransition), byte(levelTransition >> 8)}
	if err := h.Client.Command(ctx, cmdMoveToLevelWithOnOff, payload); err != nil {
		return device.Failed(fmt.Errorf("move to level: %w", err))
	}
	h.Emit(map[string]any{"brightness": int(raw), "level": percent})
	return device.OK()
}
