package handlers

import (
	"context"
	"fmt"

	"github.com/urmzd/zigman/pkg/device"
)

// Groups cluster (0x0004) command IDs.
const (
	cmdAddGroup      uint8 = 0x00
	cmdGetMembership uint8 = 0x02
	cmdRemoveGroup   uint8 = 0x03
)

// Groups handles group table management on the device.
type Groups struct {
	device.BaseHandler
}

func newGroups(b *device.Binding) device.Handler {
	return &Groups{device.BaseHandler{Binding: b}}
}

func (h *Groups) Name() string { return "groups" }

// AddGroup adds the device endpoint to a group. The name is optional and
// truncated to the ZCL string limit.
func (h *Groups) AddGroup(ctx context.Context, group uint16, name string) error {
	if len(name) > 255 {
		name = name[:255]
	}
	payload := make([]byte, 0, 3+len(name))
	payload = append(payload, byte(group), byte(group>>8), byte(len(name)))
	payload = append(payload, name...)
	if err := h.Client.Command(ctx, cmdAddGroup, payload); err != nil {
		return fmt.Errorf("add group 0x%04x: %w", group, err)
	}
	return nil
}

// RemoveGroup removes the device endpoint from a group.
func (h *Groups) RemoveGroup(ctx context.Context, group uint16) error {
	if err := h.Client.Command(ctx, cmdRemoveGroup, []byte{byte(group), byte(group >> 8)}); err != nil {
		return fmt.Errorf("remove group 0x%04x: %w", group, err)
	}
	return nil
}

// QueryMembership asks for the device's group table; the response arrives
// as a cluster command and is surfaced as diagnostics state.
func (h *Groups) QueryMembership(ctx context.Context) error {
	// Zero group count asks for all memberships.
	if err := h.Client.Command(ctx, cmdGetMembership, []byte{0x00}); err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	return nil
}

func (h *Groups) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	if commandID != cmdGetMembership || len(payload) < 2 {
		return
	}
	// capacity(1), count(1), groups(2×count LE)
	count := int(payload[1])
	groups := make([]int, 0, count)
	for i := 0; i < count && 2+i*2+1 < len(payload); i++ {
		groups = append(groups, int(payload[2+i*2])|int(payload[3+i*2])<<8)
	}
	h.Emit(map[string]any{"groups": groups})
}

// Scenes cluster (0x0005) command IDs.
const (
	cmdStoreScene  uint8 = 0x04
	cmdRecallScene uint8 = 0x05
)

// Scenes handles scene recall and storage.
type Scenes struct {
	device.BaseHandler
}

func newScenes(b *device.Binding) device.Handler {
	return &Scenes{device.BaseHandler{Binding: b}}
}

func (h *Scenes) Name() string { return "scenes" }

// RecallScene applies a stored scene.
func (h *Scenes) RecallScene(ctx context.Context, group uint16, scene uint8) error {
	payload := []byte{byte(group), byte(group >> 8), scene}
	if err := h.Client.Command(ctx, cmdRecallScene, payload); err != nil {
		return fmt.Errorf("recall scene %d: %w", scene, err)
	}
	return nil
}

// StoreScene captures the current device state into a scene slot.
func (h *Scenes) StoreScene(ctx context.Context, group uint16, scene uint8) error {
	payload := []byte{byte(group), byte(group >> 8), scene}
	if err := h.Client.Command(ctx, cmdStoreScene, payload); err != nil {
		return fmt.Errorf("store scene %d: %w", scene, err)
	}
	return nil
}
