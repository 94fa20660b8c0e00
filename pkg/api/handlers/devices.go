package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/matter"
)

// DevicesHandler handles device listing, renaming and removal across the
// Zigbee registry and the Matter bridge.
type DevicesHandler struct {
	directory *gateway.Directory
	engine    *device.Engine
	gateway   *gateway.Gateway
	bridge    *matter.Bridge
}

// NewDevicesHandler creates a new devices handler. bridge may be nil.
func NewDevicesHandler(directory *gateway.Directory, engine *device.Engine, gw *gateway.Gateway, bridge *matter.Bridge) *DevicesHandler {
	return &DevicesHandler{
		directory: directory,
		engine:    engine,
		gateway:   gw,
		bridge:    bridge,
	}
}

// ListDevices handles GET /devices
// @Summary      List all devices
// @Description  Returns all paired devices, Zigbee and Matter combined
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.ListDevicesResponse
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	devices := h.directory.Devices()
	result := make([]types.DeviceView, 0, len(devices))
	for _, d := range devices {
		result = append(result, newDeviceView(d, nil))
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Description  Returns details for one device by IEEE address or friendly name
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device IEEE address or friendly name"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	d, ok := resolveDevice(h.directory, c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	var handlers map[string]string
	if d.Protocol == device.ProtocolZigbee {
		handlers = h.engine.HandlerStatuses(d.IEEE)
	}

	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: newDeviceView(d, handlers),
	})
}

// RenameDevice handles PATCH /devices/:id
// @Summary      Rename a device
// @Description  Changes the friendly name of a device and republishes its discovery entries
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Device IEEE address or friendly name"
// @Param        request  body      types.RenameDeviceRequest  true  "New friendly name"
// @Success      200      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [patch]
func (h *DevicesHandler) RenameDevice(c *gin.Context) {
	var req types.RenameDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "friendly_name is required")
		return
	}

	d, ok := resolveDevice(h.directory, c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	var err error
	if h.bridge != nil && h.bridge.Owns(d.IEEE) {
		err = h.bridge.Rename(d.IEEE, req.FriendlyName)
	} else {
		err = h.gateway.RenameDevice(c.Request.Context(), d.IEEE, req.FriendlyName)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	updated, _ := h.directory.Device(d.IEEE)
	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: newDeviceView(updated, nil),
	})
}

// RemoveDevice handles DELETE /devices/:id
// @Summary      Remove a device
// @Description  Asks the device to leave the network and drops it from the registry
// @Tags         devices
// @Produce      json
// @Param        id   path  string  true  "Device IEEE address or friendly name"
// @Success      204  "Device removed"
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [delete]
func (h *DevicesHandler) RemoveDevice(c *gin.Context) {
	d, ok := resolveDevice(h.directory, c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	var err error
	if h.bridge != nil && h.bridge.Owns(d.IEEE) {
		err = h.bridge.RemoveNode(d.IEEE)
	} else {
		err = h.gateway.RemoveDevice(c.Request.Context(), d.IEEE)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
