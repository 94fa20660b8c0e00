// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/gateway"
	"github.com/urmzd/zigman/pkg/touchlink"
)

// respondError maps sentinel errors onto HTTP statuses. Anything
// unrecognised is a 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrValidation):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "radio_disconnected",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrUnsupported), errors.Is(err, touchlink.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, types.ErrorResponse{
			Error:   "unsupported",
			Message: err.Error(),
		})
	case errors.Is(err, touchlink.ErrBusy):
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "busy",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// resolveDevice matches the :id path segment against IEEE addresses first,
// then friendly and safe names, mirroring the MQTT set-topic intake.
func resolveDevice(dir *gateway.Directory, id string) (device.Device, bool) {
	if canonical, err := device.NormalizeIEEE(id); err == nil {
		if d, ok := dir.Device(canonical); ok {
			return d, true
		}
	}
	if d, ok := dir.Device(id); ok {
		return d, true
	}
	for _, d := range dir.Devices() {
		if d.FriendlyName == id || d.SafeName() == id {
			return d, true
		}
	}
	return device.Device{}, false
}

// newDeviceView converts an engine snapshot into the API representation.
func newDeviceView(d device.Device, handlers map[string]string) types.DeviceView {
	view := types.DeviceView{
		IEEE:         d.IEEE,
		NWK:          d.NWK,
		Protocol:     d.Protocol,
		FriendlyName: d.FriendlyName,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		SWVersion:    d.SWVersion,
		PowerSource:  d.PowerSource,
		Available:    d.Available,
		LastSeen:     d.LastSeen,
		Capabilities: d.Capabilities(),
		Handlers:     handlers,
		State:        d.State,
	}

	ids := make([]uint8, 0, len(d.Endpoints))
	for id := range d.Endpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ep := d.Endpoints[id]
		view.Endpoints = append(view.Endpoints, types.EndpointView{
			ID:          ep.ID,
			ProfileID:   ep.ProfileID,
			DeviceType:  ep.DeviceType,
			Role:        string(ep.Role),
			InClusters:  hexClusters(ep.InClusters),
			OutClusters: hexClusters(ep.OutClusters),
		})
	}
	return view
}

func hexClusters(clusters []uint16) []string {
	out := make([]string, len(clusters))
	for i, c := range clusters {
		out[i] = fmt.Sprintf("0x%04x", c)
	}
	return out
}
