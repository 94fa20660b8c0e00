package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/gateway"
)

// StatsHandler handles traffic statistics endpoints.
type StatsHandler struct {
	engine  *device.Engine
	gateway *gateway.Gateway
	decoder *fastpath.Decoder
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(engine *device.Engine, gw *gateway.Gateway, decoder *fastpath.Decoder) *StatsHandler {
	return &StatsHandler{engine: engine, gateway: gw, decoder: decoder}
}

// Packets handles GET /stats/packets
// @Summary      Per-device packet statistics
// @Description  Returns packet and byte counters with per-minute rates, plus queue drops
// @Tags         stats
// @Produce      json
// @Success      200  {object}  types.PacketStatsResponse
// @Router       /stats/packets [get]
func (h *StatsHandler) Packets(c *gin.Context) {
	c.JSON(http.StatusOK, types.PacketStatsResponse{
		Devices:      h.engine.Stats().Snapshot(),
		QueueDropped: h.gateway.Dropped(),
	})
}

// Fastpath handles GET /stats/fastpath
// @Summary      Fast path decoder statistics
// @Description  Returns hit counters for the latency-critical decode path
// @Tags         stats
// @Produce      json
// @Success      200  {object}  fastpath.Stats
// @Router       /stats/fastpath [get]
func (h *StatsHandler) Fastpath(c *gin.Context) {
	c.JSON(http.StatusOK, h.decoder.Stats())
}
