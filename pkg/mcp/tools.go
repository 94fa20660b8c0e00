package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health of the Zigman gateway: radio, MQTT and Matter connectivity, device count and pairing window"),
		),
		s.handleGetHealth,
	)

	// List devices
	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List all paired Zigbee and Matter devices with their current state"),
		),
		s.handleListDevices,
	)

	// Get device
	s.mcpServer.AddTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get detailed information about a specific device by IEEE address or friendly name, including endpoints and capabilities"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device IEEE address or friendly name"),
			),
		),
		s.handleGetDevice,
	)

	// Get device state
	s.mcpServer.AddTool(
		mcp.NewTool("get_device_state",
			mcp.WithDescription("Get the current state of a device (power, brightness, temperature, etc.)"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device IEEE address or friendly name"),
			),
		),
		s.handleGetDeviceState,
	)

	// Send command
	s.mcpServer.AddTool(
		mcp.NewTool("send_command",
			mcp.WithDescription("Send a command to a device: on, off, toggle, brightness, color_temp, open, close, stop, position or identify"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device IEEE address or friendly name"),
			),
			mcp.WithString("command",
				mcp.Required(),
				mcp.Description("Command name (e.g. on, off, toggle, brightness)"),
			),
			mcp.WithNumber("value",
				mcp.Description("Command value where one is needed (brightness 0-254, color_temp in mireds, position 0-100)"),
			),
			mcp.WithNumber("endpoint_id",
				mcp.Description("Target endpoint (optional, defaults to the device's first actuator endpoint)"),
			),
		),
		s.handleSendCommand,
	)

	// Rename device
	s.mcpServer.AddTool(
		mcp.NewTool("rename_device",
			mcp.WithDescription("Change a device's friendly name"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device IEEE address or current friendly name"),
			),
			mcp.WithString("new_name",
				mcp.Required(),
				mcp.Description("New friendly name for the device"),
			),
		),
		s.handleRenameDevice,
	)

	// Start discovery
	s.mcpServer.AddTool(
		mcp.NewTool("start_discovery",
			mcp.WithDescription("Enable pairing mode to allow new devices to join the network"),
			mcp.WithNumber("duration_seconds",
				mcp.Description("How long to enable pairing mode in seconds (default 120, max 254)"),
			),
		),
		s.handleStartDiscovery,
	)

	// Stop discovery
	s.mcpServer.AddTool(
		mcp.NewTool("stop_discovery",
			mcp.WithDescription("Disable pairing mode"),
		),
		s.handleStopDiscovery,
	)

	// List automations
	s.mcpServer.AddTool(
		mcp.NewTool("list_automations",
			mcp.WithDescription("List automation rules, optionally filtered by source device"),
			mcp.WithString("source_ieee",
				mcp.Description("Only rules watching this source device (optional)"),
			),
		),
		s.handleListAutomations,
	)

	// Create automation
	s.mcpServer.AddTool(
		mcp.NewTool("create_automation",
			mcp.WithDescription("Create an automation rule: when an attribute of the source device matches the condition, send a command to the target device"),
			mcp.WithString("source_ieee",
				mcp.Required(),
				mcp.Description("IEEE address of the device whose state triggers the rule"),
			),
			mcp.WithString("attribute",
				mcp.Required(),
				mcp.Description("Source attribute to watch (e.g. occupancy, contact, action)"),
			),
			mcp.WithString("operator",
				mcp.Required(),
				mcp.Description("Comparison operator: eq, neq, gt, lt, gte or lte"),
			),
			mcp.WithString("value",
				mcp.Required(),
				mcp.Description("Value to compare against; true/false and numbers are coerced to their JSON types"),
			),
			mcp.WithString("target_ieee",
				mcp.Required(),
				mcp.Description("IEEE address of the device to command"),
			),
			mcp.WithString("command",
				mcp.Required(),
				mcp.Description("Command to send (e.g. on, off, toggle, brightness)"),
			),
			mcp.WithNumber("command_value",
				mcp.Description("Command value where one is needed (optional)"),
			),
			mcp.WithNumber("cooldown",
				mcp.Description("Minimum seconds between firings (optional, default 1)"),
			),
		),
		s.handleCreateAutomation,
	)

	// Toggle automation
	s.mcpServer.AddTool(
		mcp.NewTool("toggle_automation",
			mcp.WithDescription("Enable or disable an automation rule by flipping its enabled flag"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Rule ID"),
			),
		),
		s.handleToggleAutomation,
	)

	// Delete automation
	s.mcpServer.AddTool(
		mcp.NewTool("delete_automation",
			mcp.WithDescription("Delete an automation rule"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Rule ID"),
			),
		),
		s.handleDeleteAutomation,
	)

	// Automation trace
	s.mcpServer.AddTool(
		mcp.NewTool("get_automation_trace",
			mcp.WithDescription("Get the recent automation evaluations: which rules matched, fired or were skipped and why"),
		),
		s.handleGetAutomationTrace,
	)

	// Link quality
	s.mcpServer.AddTool(
		mcp.NewTool("get_link_quality",
			mcp.WithDescription("Get the RSSI/LQI link samples feeding the presence zones"),
		),
		s.handleGetLinkQuality,
	)

	// Spectrum
	s.mcpServer.AddTool(
		mcp.NewTool("get_spectrum",
			mcp.WithDescription("Get the latest 2.4 GHz energy scan per Zigbee channel and the recommended channel"),
		),
		s.handleGetSpectrum,
	)
}
