package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/gateway"
)

// AutomationsHandler handles rule management and introspection endpoints.
type AutomationsHandler struct {
	rules     *automation.Engine
	directory *gateway.Directory
}

// NewAutomationsHandler creates a new automations handler.
func NewAutomationsHandler(rules *automation.Engine, directory *gateway.Directory) *AutomationsHandler {
	return &AutomationsHandler{rules: rules, directory: directory}
}

// ListRules handles GET /automations
// @Summary      List automation rules
// @Description  Returns all rules, optionally filtered by source device
// @Tags         automations
// @Produce      json
// @Param        source_ieee  query     string  false  "Only rules watching this source device"
// @Success      200          {object}  types.RulesResponse
// @Router       /automations [get]
func (h *AutomationsHandler) ListRules(c *gin.Context) {
	rules := h.rules.Rules(c.Query("source_ieee"))
	c.JSON(http.StatusOK, types.RulesResponse{
		Rules: rules,
		Count: len(rules),
	})
}

// CreateRule handles POST /automations
// @Summary      Create an automation rule
// @Description  Validates the payload against the rule schema and registers it
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        request  body      automation.CreateRequest  true  "Rule definition"
// @Success      201      {object}  types.RuleResponse
// @Failure      400      {object}  types.ErrorResponse  "Schema or semantic validation failed"
// @Failure      404      {object}  types.ErrorResponse  "Source or target device not found"
// @Router       /automations [post]
func (h *AutomationsHandler) CreateRule(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondBadRequest(c, "unreadable request body")
		return
	}
	req, err := automation.DecodeCreate(raw)
	if err != nil {
		respondError(c, err)
		return
	}

	rule, err := h.rules.AddRule(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, types.RuleResponse{Rule: rule})
}

// GetRule handles GET /automations/rule/:id
// @Summary      Get one automation rule
// @Tags         automations
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  types.RuleResponse
// @Failure      404  {object}  types.ErrorResponse  "Rule not found"
// @Router       /automations/rule/{id} [get]
func (h *AutomationsHandler) GetRule(c *gin.Context) {
	rule, ok := h.rules.Rule(c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("rule %s: %w", c.Param("id"), device.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, types.RuleResponse{Rule: rule})
}

// UpdateRule handles PUT /automations/:id
// @Summary      Update an automation rule
// @Description  Applies a partial update; conditions replace the whole list when present
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Rule ID"
// @Param        request  body      automation.UpdateRequest  true  "Fields to change"
// @Success      200      {object}  types.RuleResponse
// @Failure      400      {object}  types.ErrorResponse  "Validation failed"
// @Failure      404      {object}  types.ErrorResponse  "Rule not found"
// @Router       /automations/{id} [put]
func (h *AutomationsHandler) UpdateRule(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondBadRequest(c, "unreadable request body")
		return
	}
	req, err := automation.DecodeUpdate(raw)
	if err != nil {
		respondError(c, err)
		return
	}

	rule, err := h.rules.UpdateRule(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RuleResponse{Rule: rule})
}

// DeleteRule handles DELETE /automations/:id
// @Summary      Delete an automation rule
// @Tags         automations
// @Produce      json
// @Param        id   path  string  true  "Rule ID"
// @Success      204  "Rule deleted"
// @Failure      404  {object}  types.ErrorResponse  "Rule not found"
// @Router       /automations/{id} [delete]
func (h *AutomationsHandler) DeleteRule(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleRule handles PATCH /automations/:id/toggle
// @Summary      Toggle an automation rule
// @Description  Flips the rule's enabled flag
// @Tags         automations
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  types.RuleResponse
// @Failure      404  {object}  types.ErrorResponse  "Rule not found"
// @Router       /automations/{id}/toggle [patch]
func (h *AutomationsHandler) ToggleRule(c *gin.Context) {
	rule, ok := h.rules.Rule(c.Param("id"))
	if !ok {
		respondError(c, fmt.Errorf("rule %s: %w", c.Param("id"), device.ErrNotFound))
		return
	}

	enabled := !rule.Enabled
	updated, err := h.rules.UpdateRule(rule.ID, automation.UpdateRequest{Enabled: &enabled})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RuleResponse{Rule: updated})
}

// Stats handles GET /automations/stats
// @Summary      Automation engine statistics
// @Tags         automations
// @Produce      json
// @Success      200  {object}  automation.Stats
// @Router       /automations/stats [get]
func (h *AutomationsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.rules.Stats())
}

// Trace handles GET /automations/trace
// @Summary      Automation evaluation trace
// @Description  Returns the ring of recent rule evaluations, oldest first
// @Tags         automations
// @Produce      json
// @Success      200  {object}  types.TraceResponse
// @Router       /automations/trace [get]
func (h *AutomationsHandler) Trace(c *gin.Context) {
	entries := h.rules.Trace()
	c.JSON(http.StatusOK, types.TraceResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// SourceAttributes handles GET /automations/device/:ieee/attributes
// @Summary      List condition attributes for a device
// @Description  Returns the state attributes of a device usable in rule conditions
// @Tags         automations
// @Produce      json
// @Param        ieee  path      string  true  "Source device IEEE address"
// @Success      200   {object}  types.AttributesResponse
// @Failure      404   {object}  types.ErrorResponse  "Device not found"
// @Router       /automations/device/{ieee}/attributes [get]
func (h *AutomationsHandler) SourceAttributes(c *gin.Context) {
	d, ok := resolveDevice(h.directory, c.Param("ieee"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("ieee"), device.ErrNotFound))
		return
	}
	attrs := h.rules.SourceAttributes(d.IEEE)
	if attrs == nil {
		attrs = []automation.AttributeInfo{}
	}
	c.JSON(http.StatusOK, types.AttributesResponse{
		IEEE:       d.IEEE,
		Attributes: attrs,
	})
}

// TargetCommands handles GET /automations/device/:ieee/actions
// @Summary      List commands a device accepts
// @Description  Returns the action commands a device supports as a rule target
// @Tags         automations
// @Produce      json
// @Param        ieee  path      string  true  "Target device IEEE address"
// @Success      200   {object}  types.ActionsResponse
// @Failure      404   {object}  types.ErrorResponse  "Device not found"
// @Router       /automations/device/{ieee}/actions [get]
func (h *AutomationsHandler) TargetCommands(c *gin.Context) {
	d, ok := resolveDevice(h.directory, c.Param("ieee"))
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", c.Param("ieee"), device.ErrNotFound))
		return
	}
	commands := h.rules.TargetCommands(d.IEEE)
	if commands == nil {
		commands = []string{}
	}
	c.JSON(http.StatusOK, types.ActionsResponse{
		IEEE:     d.IEEE,
		Commands: commands,
	})
}

// Actuators handles GET /automations/actuators
// @Summary      List actuator devices
// @Description  Returns devices that can be rule targets
// @Tags         automations
// @Produce      json
// @Success      200  {object}  types.ActuatorsResponse
// @Router       /automations/actuators [get]
func (h *AutomationsHandler) Actuators(c *gin.Context) {
	devices := h.directory.Actuators()
	result := make([]types.ActuatorView, 0, len(devices))
	for _, d := range devices {
		result = append(result, types.ActuatorView{
			IEEE:         d.IEEE,
			Name:         d.Name(),
			Available:    d.Available,
			Capabilities: d.Capabilities(),
		})
	}
	c.JSON(http.StatusOK, types.ActuatorsResponse{
		Actuators: result,
		Count:     len(result),
	})
}
