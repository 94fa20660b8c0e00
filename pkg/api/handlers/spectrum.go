package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/config"
	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/spectrum"
)

// SpectrumHandler handles energy scan endpoints.
type SpectrumHandler struct {
	monitor *spectrum.Monitor
	store   db.SpectrumStore
}

// NewSpectrumHandler creates a new spectrum handler.
func NewSpectrumHandler(monitor *spectrum.Monitor, store db.SpectrumStore) *SpectrumHandler {
	return &SpectrumHandler{monitor: monitor, store: store}
}

// Latest handles GET /spectrum
// @Summary      Latest spectrum scan
// @Description  Returns the most recent per-channel energy readings
// @Tags         spectrum
// @Produce      json
// @Success      200  {object}  types.SpectrumLatestResponse
// @Failure      404  {object}  types.ErrorResponse  "No scan has completed yet"
// @Router       /spectrum [get]
func (h *SpectrumHandler) Latest(c *gin.Context) {
	channels, timestamp := h.monitor.Latest()
	if channels == nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "no spectrum scan has completed yet",
		})
		return
	}
	c.JSON(http.StatusOK, types.SpectrumLatestResponse{
		Channels:    channels,
		BestChannel: config.SelectBestChannel(toFloat(channels)),
		Timestamp:   timestamp,
	})
}

// History handles GET /spectrum/history
// @Summary      Spectrum scan history
// @Description  Returns raw energy readings over the requested window
// @Tags         spectrum
// @Produce      json
// @Param        hours  query     int  false  "Window in hours"  default(24)
// @Success      200    {object}  types.SpectrumHistoryResponse
// @Router       /spectrum/history [get]
func (h *SpectrumHandler) History(c *gin.Context) {
	hours := queryHours(c, 24)
	records, err := h.store.History(c.Request.Context(), hours)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SpectrumHistoryResponse{
		Records: records,
		Hours:   hours,
		Count:   len(records),
	})
}

// ChannelAverages handles GET /spectrum/channels
// @Summary      Per-channel energy averages
// @Description  Averages the readings per channel over the window and ranks the best channel
// @Tags         spectrum
// @Produce      json
// @Param        hours  query     int  false  "Window in hours"  default(24)
// @Success      200    {object}  types.SpectrumChannelsResponse
// @Router       /spectrum/channels [get]
func (h *SpectrumHandler) ChannelAverages(c *gin.Context) {
	hours := queryHours(c, 24)
	averages, err := h.store.ChannelAverages(c.Request.Context(), hours)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SpectrumChannelsResponse{
		Averages:    averages,
		BestChannel: config.SelectBestChannel(averages),
		Hours:       hours,
	})
}

// Scan handles POST /spectrum/scan
// @Summary      Run a spectrum scan now
// @Description  Runs a full energy sweep synchronously and returns the readings
// @Tags         spectrum
// @Produce      json
// @Success      200  {object}  types.SpectrumLatestResponse
// @Failure      503  {object}  types.ErrorResponse  "Radio not connected"
// @Router       /spectrum/scan [post]
func (h *SpectrumHandler) Scan(c *gin.Context) {
	channels, err := h.monitor.Scan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	_, timestamp := h.monitor.Latest()
	c.JSON(http.StatusOK, types.SpectrumLatestResponse{
		Channels:    channels,
		BestChannel: config.SelectBestChannel(toFloat(channels)),
		Timestamp:   timestamp,
	})
}

func toFloat(energies map[int]int) map[int]float64 {
	out := make(map[int]float64, len(energies))
	for ch, e := range energies {
		out[ch] = float64(e)
	}
	return out
}

func queryHours(c *gin.Context, fallback int) int {
	raw := c.Query("hours")
	if raw == "" {
		return fallback
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return fallback
	}
	return hours
}
