package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/gateway"
)

// Permit-join windows are a single byte on the wire; 255 means "forever"
// and is deliberately not reachable through the API.
const (
	defaultJoinSeconds = 120
	maxJoinSeconds     = 254
)

// DiscoveryHandler handles pairing-mode endpoints.
type DiscoveryHandler struct {
	gateway *gateway.Gateway
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(gw *gateway.Gateway) *DiscoveryHandler {
	return &DiscoveryHandler{gateway: gw}
}

// StartDiscovery handles POST /discovery/start
// @Summary      Start device discovery
// @Description  Opens the permit-join window so new devices can pair
// @Tags         discovery
// @Accept       json
// @Produce      json
// @Param        request  body      types.StartDiscoveryRequest  false  "Window duration (default 120 seconds, max 254)"
// @Success      200      {object}  types.StartDiscoveryResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid duration"
// @Failure      503      {object}  types.ErrorResponse  "Radio disconnected"
// @Router       /discovery/start [post]
func (h *DiscoveryHandler) StartDiscovery(c *gin.Context) {
	var req types.StartDiscoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.DurationSeconds = defaultJoinSeconds
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = defaultJoinSeconds
	}
	if req.DurationSeconds > maxJoinSeconds {
		respondBadRequest(c, "duration cannot exceed 254 seconds")
		return
	}

	if err := h.gateway.PermitJoin(c.Request.Context(), uint8(req.DurationSeconds)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StartDiscoveryResponse{
		Status:          "pairing_enabled",
		ExpiresAt:       time.Now().Add(time.Duration(req.DurationSeconds) * time.Second),
		DurationSeconds: req.DurationSeconds,
	})
}

// StopDiscovery handles POST /discovery/stop
// @Summary      Stop device discovery
// @Description  Closes the permit-join window
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  types.StopDiscoveryResponse
// @Failure      503  {object}  types.ErrorResponse  "Radio disconnected"
// @Router       /discovery/stop [post]
func (h *DiscoveryHandler) StopDiscovery(c *gin.Context) {
	if err := h.gateway.PermitJoin(c.Request.Context(), 0); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StopDiscoveryResponse{
		Status: "pairing_disabled",
	})
}
