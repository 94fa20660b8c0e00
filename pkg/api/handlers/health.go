package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/matter"
	"github.com/urmzd/zigman/pkg/mqtt"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	engine  *device.Engine
	gateway *gateway.Gateway
	mqtt    *mqtt.Service
	bridge  *matter.Bridge
	started time.Time
}

// NewHealthHandler creates a new health handler. The MQTT service and the
// Matter bridge may be nil when those integrations are not configured.
func NewHealthHandler(engine *device.Engine, gw *gateway.Gateway, mqttSvc *mqtt.Service, bridge *matter.Bridge) *HealthHandler {
	return &HealthHandler{
		engine:  engine,
		gateway: gw,
		mqtt:    mqttSvc,
		bridge:  bridge,
		started: time.Now(),
	}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the gateway and its integrations
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Radio is disconnected"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	radio := "disconnected"
	if h.engine.Radio().IsConnected() {
		radio = "connected"
	}

	mqttStatus := "disabled"
	if h.mqtt != nil {
		mqttStatus = "disconnected"
		if h.mqtt.IsConnected() {
			mqttStatus = "connected"
		}
	}

	matterStatus := "disabled"
	if h.bridge != nil {
		matterStatus = "disconnected"
		if h.bridge.IsConnected() {
			matterStatus = "connected"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if radio != "connected" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:              status,
		Radio:               radio,
		MQTT:                mqttStatus,
		Matter:              matterStatus,
		Devices:             len(h.engine.Devices()),
		PermitJoinRemaining: h.gateway.PermitJoinRemaining(),
		UptimeSeconds:       time.Since(h.started).Seconds(),
		Timestamp:           time.Now(),
	})
}
