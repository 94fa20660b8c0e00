package mcp

// Tool outputs that reshape or summarise the gateway's API responses.
// Read-only tools return the API payload as-is and need no types here.

// DeviceSummary is the compact device view used in list outputs.
type DeviceSummary struct {
	IEEE         string         `json:"ieee" jsonschema:"description=Device IEEE address"`
	Name         string         `json:"name" jsonschema:"description=User-friendly device name"`
	Protocol     string         `json:"protocol" jsonschema:"description=zigbee or matter"`
	Manufacturer string         `json:"manufacturer,omitempty" jsonschema:"description=Device manufacturer"`
	Model        string         `json:"model,omitempty" jsonschema:"description=Device model"`
	Available    bool           `json:"available" jsonschema:"description=Whether the device has been heard from recently"`
	Capabilities []string       `json:"capabilities,omitempty" jsonschema:"description=Derived capabilities (light, sensor, cover, ...)"`
	State        map[string]any `json:"state,omitempty" jsonschema:"description=Current device state"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceSummary `json:"devices" jsonschema:"description=List of paired devices"`
	Count   int             `json:"count" jsonschema:"description=Total number of devices"`
}

// SendCommandOutput is the output for the send_command tool
type SendCommandOutput struct {
	DeviceID string         `json:"device_id" jsonschema:"description=Device identifier"`
	Success  bool           `json:"success" jsonschema:"description=Whether the command was delivered"`
	Command  string         `json:"command" jsonschema:"description=Normalised command that was sent"`
	Error    string         `json:"error,omitempty" jsonschema:"description=Failure detail when success is false"`
	State    map[string]any `json:"state,omitempty" jsonschema:"description=Device state after the command"`
}

// RenameDeviceOutput is the output for the rename_device tool
type RenameDeviceOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the rename succeeded"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// StartDiscoveryOutput is the output for the start_discovery tool
type StartDiscoveryOutput struct {
	Success         bool   `json:"success" jsonschema:"description=Whether pairing mode was enabled"`
	Message         string `json:"message" jsonschema:"description=Status message"`
	DurationSeconds int    `json:"duration_seconds" jsonschema:"description=Duration pairing mode will be active"`
}

// StopDiscoveryOutput is the output for the stop_discovery tool
type StopDiscoveryOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether pairing mode was disabled"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// DeleteAutomationOutput is the output for the delete_automation tool
type DeleteAutomationOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the rule was deleted"`
	Message string `json:"message" jsonschema:"description=Status message"`
}
