package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/touchlink"
)

// A full 16-channel sweep takes a little under a minute; identify and reset
// add a broadcast round on top.
const touchlinkTimeout = 2 * time.Minute

// TouchlinkHandler handles touchlink commissioning endpoints.
type TouchlinkHandler struct {
	session *touchlink.Session
}

// NewTouchlinkHandler creates a new touchlink handler.
func NewTouchlinkHandler(session *touchlink.Session) *TouchlinkHandler {
	return &TouchlinkHandler{session: session}
}

// Scan handles POST /touchlink/scan
// @Summary      Touchlink scan
// @Description  Broadcasts touchlink scan requests and lists the devices that answered
// @Tags         touchlink
// @Accept       json
// @Produce      json
// @Param        request  body      types.TouchlinkRequest  false  "Channel to scan, 0 or omitted for all"
// @Success      200      {object}  types.TouchlinkResponse
// @Failure      409      {object}  types.ErrorResponse  "Another touchlink operation is running"
// @Failure      501      {object}  types.ErrorResponse  "Coordinator has no touchlink support"
// @Router       /touchlink/scan [post]
func (h *TouchlinkHandler) Scan(c *gin.Context) {
	h.run(c, "scan_complete", h.session.Scan)
}

// Identify handles POST /touchlink/identify
// @Summary      Touchlink identify
// @Description  Scans, then asks every responder to blink for a few seconds
// @Tags         touchlink
// @Accept       json
// @Produce      json
// @Param        request  body      types.TouchlinkRequest  false  "Channel to scan, 0 or omitted for all"
// @Success      200      {object}  types.TouchlinkResponse
// @Failure      409      {object}  types.ErrorResponse  "Another touchlink operation is running"
// @Failure      501      {object}  types.ErrorResponse  "Coordinator has no touchlink support"
// @Router       /touchlink/identify [post]
func (h *TouchlinkHandler) Identify(c *gin.Context) {
	h.run(c, "identify_complete", h.session.Identify)
}

// FactoryReset handles POST /touchlink/reset
// @Summary      Touchlink factory reset
// @Description  Resets every touchlink responder in range to factory new
// @Tags         touchlink
// @Accept       json
// @Produce      json
// @Param        request  body      types.TouchlinkRequest  false  "Channel to scan, 0 or omitted for all"
// @Success      200      {object}  types.TouchlinkResponse
// @Failure      409      {object}  types.ErrorResponse  "Another touchlink operation is running"
// @Failure      501      {object}  types.ErrorResponse  "Coordinator has no touchlink support"
// @Router       /touchlink/reset [post]
func (h *TouchlinkHandler) FactoryReset(c *gin.Context) {
	h.run(c, "reset_complete", h.session.FactoryReset)
}

func (h *TouchlinkHandler) run(c *gin.Context, status string, op func(context.Context, int) ([]touchlink.Device, error)) {
	var req types.TouchlinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.Channel != 0 && (req.Channel < 11 || req.Channel > 26) {
		respondBadRequest(c, "channel must be 11-26, or 0 for all")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), touchlinkTimeout)
	defer cancel()

	devices, err := op(ctx, req.Channel)
	if err != nil {
		respondError(c, err)
		return
	}
	if devices == nil {
		devices = []touchlink.Device{}
	}
	c.JSON(http.StatusOK, types.TouchlinkResponse{
		Status:  status,
		Devices: devices,
		Count:   len(devices),
	})
}
