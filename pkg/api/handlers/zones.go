package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/zones"
)

// ZonesHandler handles presence zone management endpoints.
type ZonesHandler struct {
	manager *zones.Manager
	intake  *zones.Intake
}

// NewZonesHandler creates a new zones handler.
func NewZonesHandler(manager *zones.Manager, intake *zones.Intake) *ZonesHandler {
	return &ZonesHandler{manager: manager, intake: intake}
}

// ListZones handles GET /zones
// @Summary      List presence zones
// @Description  Returns every zone with its live occupancy status
// @Tags         zones
// @Produce      json
// @Success      200  {object}  types.ZonesResponse
// @Router       /zones [get]
func (h *ZonesHandler) ListZones(c *gin.Context) {
	list := h.manager.Zones()
	c.JSON(http.StatusOK, types.ZonesResponse{
		Zones: list,
		Count: len(list),
	})
}

// CreateZone handles POST /zones
// @Summary      Create a presence zone
// @Description  Registers a zone over at least two devices and starts calibration
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        request  body      zones.Config  true  "Zone configuration"
// @Success      201      {object}  types.ZoneResponse
// @Failure      400      {object}  types.ErrorResponse  "Missing name, too few devices or duplicate zone"
// @Router       /zones [post]
func (h *ZonesHandler) CreateZone(c *gin.Context) {
	var cfg zones.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondBadRequest(c, "invalid zone configuration: "+err.Error())
		return
	}

	status, err := h.manager.CreateZone(cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, types.ZoneResponse{Zone: status})
}

// GetZone handles GET /zones/:name
// @Summary      Get one presence zone
// @Tags         zones
// @Produce      json
// @Param        name  path      string  true  "Zone name"
// @Success      200   {object}  types.ZoneResponse
// @Failure      404   {object}  types.ErrorResponse  "Zone not found"
// @Router       /zones/{name} [get]
func (h *ZonesHandler) GetZone(c *gin.Context) {
	status, ok := h.manager.Zone(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "zone " + c.Param("name") + " not found",
		})
		return
	}
	c.JSON(http.StatusOK, types.ZoneResponse{Zone: status})
}

// UpdateZone handles PUT /zones/:name
// @Summary      Update zone thresholds
// @Description  Applies a partial update to the zone's detection parameters
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        name     path      string               true  "Zone name"
// @Param        request  body      zones.UpdateRequest  true  "Fields to change"
// @Success      200      {object}  types.ZoneResponse
// @Failure      404      {object}  types.ErrorResponse  "Zone not found"
// @Router       /zones/{name} [put]
func (h *ZonesHandler) UpdateZone(c *gin.Context) {
	var upd zones.UpdateRequest
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondBadRequest(c, "invalid update: "+err.Error())
		return
	}

	status, err := h.manager.UpdateZone(c.Param("name"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ZoneResponse{Zone: status})
}

// DeleteZone handles DELETE /zones/:name
// @Summary      Delete a presence zone
// @Tags         zones
// @Produce      json
// @Param        name  path  string  true  "Zone name"
// @Success      204   "Zone deleted"
// @Failure      404   {object}  types.ErrorResponse  "Zone not found"
// @Router       /zones/{name} [delete]
func (h *ZonesHandler) DeleteZone(c *gin.Context) {
	if err := h.manager.DeleteZone(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Recalibrate handles POST /zones/:name/recalibrate
// @Summary      Recalibrate a zone
// @Description  Discards the zone's baselines and restarts the calibration window
// @Tags         zones
// @Produce      json
// @Param        name  path      string  true  "Zone name"
// @Success      200   {object}  types.ZoneResponse
// @Failure      404   {object}  types.ErrorResponse  "Zone not found"
// @Router       /zones/{name}/recalibrate [post]
func (h *ZonesHandler) Recalibrate(c *gin.Context) {
	status, err := h.manager.Recalibrate(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ZoneResponse{Zone: status})
}

// ModifyDevices handles POST /zones/:name/devices
// @Summary      Add or remove zone devices
// @Description  Adjusts the zone's device set and recalibrates it
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        name     path      string                   true  "Zone name"
// @Param        request  body      types.ZoneDevicesRequest true  "Devices to add and remove"
// @Success      200      {object}  types.ZoneResponse
// @Failure      400      {object}  types.ErrorResponse  "Resulting zone would have fewer than 2 devices"
// @Failure      404      {object}  types.ErrorResponse  "Zone not found"
// @Router       /zones/{name}/devices [post]
func (h *ZonesHandler) ModifyDevices(c *gin.Context) {
	var req types.ZoneDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid device list: "+err.Error())
		return
	}

	status, err := h.manager.ModifyDevices(c.Param("name"), req.Add, req.Remove)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ZoneResponse{Zone: status})
}

// Links handles GET /zones/links
// @Summary      Link quality snapshot
// @Description  Returns the recent RSSI samples feeding the zones plus intake counters
// @Tags         zones
// @Produce      json
// @Success      200  {object}  types.LinksResponse
// @Router       /zones/links [get]
func (h *ZonesHandler) Links(c *gin.Context) {
	links := h.manager.Links()
	c.JSON(http.StatusOK, types.LinksResponse{
		Links: links,
		Count: len(links),
		Stats: h.intake.Stats(),
	})
}

// Suggestions handles GET /zones/suggestions
// @Summary      Suggest zone devices
// @Description  Lists mains-powered devices suited to a zone, router-backed first
// @Tags         zones
// @Produce      json
// @Param        room  query     string  false  "Room name used to rank matches"
// @Success      200   {object}  types.SuggestionsResponse
// @Router       /zones/suggestions [get]
func (h *ZonesHandler) Suggestions(c *gin.Context) {
	room := c.Query("room")
	suggestions := h.manager.SuggestDevices(room)
	if suggestions == nil {
		suggestions = []zones.DeviceSuggestion{}
	}
	c.JSON(http.StatusOK, types.SuggestionsResponse{
		Room:        room,
		Suggestions: suggestions,
	})
}
