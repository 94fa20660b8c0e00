package handlers

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/urmzd/zigman/pkg/device"
)

// LightLink commission utility: get group identifiers request and response
// share the command ID and are told apart by frame direction.
const cmdGetGroupIdentifiers uint8 = 0x41

// How long to wait for a group identifiers response before falling back to
// the default commissioning group.
const lightLinkResponseWait = 10 * time.Second

// The default LightLink group joined when a bulb reports none.
const defaultLightLinkGroup uint16 = 0x0000

// LightLink handles the Touchlink commissioning cluster (0x1000) found on
// Ikea and Hue bulbs. Such bulbs answer group casts only, so the coordinator
// must share a group with them; configure queries the bulb's groups and
// joins each one, creating the default group when the bulb has none.
type LightLink struct {
	device.BaseHandler

	mu        sync.Mutex
	responded bool
}

func newLightLink(b *device.Binding) device.Handler {
	return &LightLink{BaseHandler: device.BaseHandler{Binding: b}}
}

func (h *LightLink) Name() string { return "lightlink" }

// Configure queries the bulb's group identifiers. LightLink is a
// commissioning cluster and is never bound.
func (h *LightLink) Configure(ctx context.Context) error {
	h.mu.Lock()
	h.responded = false
	h.mu.Unlock()

	// Start index 0 requests the whole table.
	if err := h.Client.Command(ctx, cmdGetGroupIdentifiers, []byte{0x00}); err != nil {
		return fmt.Errorf("get group identifiers: %w", err)
	}

	time.AfterFunc(lightLinkResponseWait, h.fallbackToDefaultGroup)
	return nil
}

func (h *LightLink) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	if commandID != cmdGetGroupIdentifiers {
		h.Log.Debug().Uint8("command", commandID).Msg("unhandled lightlink command")
		return
	}
	// total(1), start index(1), count(1), then (group:2 LE, type:1) records.
	if len(payload) < 3 {
		return
	}
	h.mu.Lock()
	h.responded = true
	h.mu.Unlock()

	count := int(payload[2])
	groups := make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		off := 3 + i*3
		if off+2 > len(payload) {
			break
		}
		groups = append(groups, binary.LittleEndian.Uint16(payload[off:]))
	}

	if len(groups) == 0 {
		h.joinGroups([]uint16{defaultLightLinkGroup})
		return
	}
	h.Log.Info().Int("groups", len(groups)).Msg("lightlink groups reported")
	h.joinGroups(groups)
}

func (h *LightLink) fallbackToDefaultGroup() {
	h.mu.Lock()
	responded := h.responded
	h.mu.Unlock()
	if responded {
		return
	}
	h.Log.Info().Msg("no lightlink group response, joining default group")
	h.joinGroups([]uint16{defaultLightLinkGroup})
}

// joinGroups adds the device endpoint to each group so coordinator group
// casts reach it.
func (h *LightLink) joinGroups(groups []uint16) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, g := range groups {
		if err := h.Client.AddToGroup(ctx, g); err != nil {
			h.Log.Warn().Err(err).Uint16("group", g).Msg("joining lightlink group failed")
			continue
		}
		h.Log.Info().Uint16("group", g).Msg("joined lightlink group")
	}
}
