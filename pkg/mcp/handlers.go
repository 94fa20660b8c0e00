package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/urmzd/zigman/pkg/automation"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health, err := s.client.Health(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get health: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(health)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.ListDevices(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list devices: %s", err)), nil
	}

	summaries := make([]DeviceSummary, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		summaries = append(summaries, DeviceSummary{
			IEEE:         d.IEEE,
			Name:         d.FriendlyName,
			Protocol:     d.Protocol,
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			Available:    d.Available,
			Capabilities: d.Capabilities,
			State:        d.State,
		})
	}

	out := ListDevicesOutput{
		Devices: summaries,
		Count:   len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.client.GetDevice(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleGetDeviceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.client.GetDeviceState(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get device state: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := requiredString(request, "command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]any{"command": command}
	if v, ok := optionalNumber(request, "value"); ok {
		body["value"] = v
	}
	if ep, ok := optionalNumber(request, "endpoint_id"); ok {
		body["endpoint_id"] = ep
	}

	resp, err := s.client.SendCommand(ctx, id, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send command: %s", err)), nil
	}

	out := SendCommandOutput{
		DeviceID: id,
		Success:  resp.Success,
		Command:  resp.Command,
		Error:    resp.Error,
		State:    resp.State,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleRenameDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := requiredString(request, "new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.client.RenameDevice(ctx, id, newName); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to rename device: %s", err)), nil
	}

	out := RenameDeviceOutput{
		Success: true,
		Message: fmt.Sprintf("Device %q renamed to %q", id, newName),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleStartDiscovery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration := 0
	if d, ok := optionalNumber(request, "duration_seconds"); ok && d > 0 {
		duration = int(d)
	}

	resp, err := s.client.StartDiscovery(ctx, duration)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start discovery: %s", err)), nil
	}

	out := StartDiscoveryOutput{
		Success:         true,
		Message:         fmt.Sprintf("Pairing mode enabled for %d seconds", resp.DurationSeconds),
		DurationSeconds: resp.DurationSeconds,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleStopDiscovery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.client.StopDiscovery(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop discovery: %s", err)), nil
	}

	out := StopDiscoveryOutput{
		Success: true,
		Message: "Pairing mode disabled",
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListAutomations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceIEEE := ""
	if v, ok := request.GetArguments()["source_ieee"].(string); ok {
		sourceIEEE = v
	}

	resp, err := s.client.ListAutomations(ctx, sourceIEEE)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list automations: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleCreateAutomation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := automation.CreateRequest{}

	var err error
	if req.SourceIEEE, err = requiredString(request, "source_ieee"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Attribute, err = requiredString(request, "attribute"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Operator, err = requiredString(request, "operator"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawValue, err := requiredString(request, "value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.Value = coerceValue(rawValue)
	if req.TargetIEEE, err = requiredString(request, "target_ieee"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Command, err = requiredString(request, "command"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v, ok := optionalNumber(request, "command_value"); ok {
		req.CommandValue = v
	}
	if v, ok := optionalNumber(request, "cooldown"); ok {
		req.Cooldown = &v
	}

	resp, err := s.client.CreateAutomation(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create automation: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleToggleAutomation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.client.ToggleAutomation(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle automation: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleDeleteAutomation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.client.DeleteAutomation(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete automation: %s", err)), nil
	}

	out := DeleteAutomationOutput{
		Success: true,
		Message: fmt.Sprintf("Automation %q deleted", id),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetAutomationTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.AutomationTrace(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get automation trace: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleGetLinkQuality(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.LinkQuality(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get link quality: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleGetSpectrum(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.Spectrum(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get spectrum: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalNumber(request mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := request.GetArguments()[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// coerceValue maps a string argument onto the JSON type rule conditions
// compare against: bools and numbers as themselves, everything else as text.
func coerceValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
