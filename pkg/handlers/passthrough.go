package handlers

import (
	"fmt"
	"time"

	"github.com/urmzd/zigman/pkg/device"
)

// Passthrough covers clusters without a dedicated handler. Reported values
// surface under raw attribute keys so unknown devices still show up with
// inspectable state instead of disappearing.
type Passthrough struct {
	device.BaseHandler
}

func newPassthrough(b *device.Binding) device.Handler {
	return &Passthrough{device.BaseHandler{Binding: b}}
}

func (h *Passthrough) Name() string {
	return fmt.Sprintf("cluster_0x%04x", h.ClusterID)
}

func (h *Passthrough) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	switch value.(type) {
	case nil:
		return
	case []byte:
		value = fmt.Sprintf("%x", value)
	}
	h.Emit(map[string]any{fmt.Sprintf("attr_0x%04x", attrID): value})
}

func (h *Passthrough) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	h.Log.Debug().
		Uint8("command", commandID).
		Int("len", len(payload)).
		Msg("unhandled cluster command")
}
