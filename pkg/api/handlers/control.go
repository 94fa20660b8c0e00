package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/gateway"
)

// ControlHandler handles device state reads and command dispatch.
type ControlHandler struct {
	directory *gateway.Directory
}

// NewControlHandler creates a new control handler.
func NewControlHandler(directory *gateway.Directory) *ControlHandler {
	return &ControlHandler{directory: directory}
}

// GetState handles GET /devices/:id/state
// @Summary      Get device state
// @Description  Returns the current normalised state of a device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device IEEE address or friendly name"
// @Success      200  {object}  types.StateResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id}/state [get]
func (h *ControlHandler) GetState(c *gin.Context) {
	d, ok := resolveDevice(h.directory, c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		IEEE:      d.IEEE,
		Name:      d.Name(),
		State:     d.State,
		Timestamp: time.Now(),
	})
}

// SetState handles POST /devices/:id/state
// @Summary      Send a device command
// @Description  Dispatches a normalised command ({"command":"on"}) or a state document ({"state":"ON","brightness":128})
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Device IEEE address or friendly name"
// @Param        request  body      types.CommandRequest  true  "Command or state to apply"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      502      {object}  types.CommandResponse  "Command failed"
// @Router       /devices/{id}/state [post]
func (h *ControlHandler) SetState(c *gin.Context) {
	var body map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil || len(body) == 0 {
		respondBadRequest(c, "request body must be a JSON object")
		return
	}

	d, ok := resolveDevice(h.directory, c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	command, value, endpoint, err := normaliseCommand(body)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	res := h.directory.SendCommand(c.Request.Context(), d.IEEE, command, value, endpoint)
	if !res.Success {
		c.JSON(http.StatusBadGateway, types.CommandResponse{
			Success:   false,
			Error:     res.Error,
			Command:   command,
			Timestamp: time.Now(),
		})
		return
	}

	// Optimistic handler updates land synchronously, so the snapshot
	// already reflects the command.
	updated, _ := h.directory.Device(d.IEEE)
	c.JSON(http.StatusOK, types.CommandResponse{
		Success:   true,
		Command:   command,
		State:     updated.State,
		Timestamp: time.Now(),
	})
}

// normaliseCommand maps the two accepted body shapes onto the engine's
// command vocabulary, sharing the MQTT set-topic semantics.
func normaliseCommand(body map[string]any) (command string, value any, endpoint uint8, err error) {
	if ep, ok := body["endpoint_id"]; ok {
		if n, ok := ep.(float64); ok && n >= 0 && n <= 255 {
			endpoint = uint8(n)
		}
	}

	if cmd, ok := body["command"].(string); ok && cmd != "" {
		return strings.ToLower(cmd), body["value"], endpoint, nil
	}

	if state, ok := body["state"].(string); ok {
		if cmd, ok := plainCommand(state); ok {
			return cmd, nil, endpoint, nil
		}
		return "", nil, 0, errors.New("unrecognised state value, expected ON/OFF/TOGGLE/OPEN/CLOSE/STOP")
	}

	for _, key := range []string{"brightness", "color_temp", "position"} {
		if v, ok := body[key]; ok {
			return key, v, endpoint, nil
		}
	}
	return "", nil, 0, errors.New("provide a command field or a state document")
}

func plainCommand(state string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "ON":
		return "on", true
	case "OFF":
		return "off", true
	case "TOGGLE":
		return "toggle", true
	case "OPEN":
		return "open", true
	case "CLOSE":
		return "close", true
	case "STOP":
		return "stop", true
	}
	return "", false
}
