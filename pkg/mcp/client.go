package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/urmzd/zigman/pkg/api/types"
	"github.com/urmzd/zigman/pkg/automation"
)

// DefaultBaseURL points at a gateway on the local host.
const DefaultBaseURL = "http://127.0.0.1:8080"

// Client is a thin HTTP client for the gateway API. The daemon owns the
// radio, so every tool call goes through it.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the gateway at baseURL. An empty baseURL
// falls back to DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// doRaw performs a request and returns the body and status code. Transport
// failures are errors; HTTP error statuses are the caller's to interpret.
func (c *Client) doRaw(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// do performs a request and decodes a 2xx response into out. Error statuses
// are turned into errors carrying the gateway's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, status, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status >= 400 {
		var apiErr types.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return fmt.Errorf("gateway returned status %d", status)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Health fetches gateway health. A degraded gateway answers 503 with the
// same body, so the status code is not treated as an error here.
func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	var out types.HealthResponse
	data, _, err := c.doRaw(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// ListDevices fetches the unified device list.
func (c *Client) ListDevices(ctx context.Context) (types.ListDevicesResponse, error) {
	var out types.ListDevicesResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, &out)
	return out, err
}

// GetDevice fetches one device by IEEE address or friendly name.
func (c *Client) GetDevice(ctx context.Context, id string) (types.DeviceResponse, error) {
	var out types.DeviceResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/devices/"+url.PathEscape(id), nil, &out)
	return out, err
}

// GetDeviceState fetches a device's state snapshot.
func (c *Client) GetDeviceState(ctx context.Context, id string) (types.StateResponse, error) {
	var out types.StateResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/devices/"+url.PathEscape(id)+"/state", nil, &out)
	return out, err
}

// SendCommand posts a command body to a device. A failed command comes back
// as a CommandResponse with Success false rather than an error, matching the
// API's 502 behaviour.
func (c *Client) SendCommand(ctx context.Context, id string, body map[string]any) (types.CommandResponse, error) {
	var out types.CommandResponse
	data, status, err := c.doRaw(ctx, http.MethodPost, "/api/v1/devices/"+url.PathEscape(id)+"/state", body)
	if err != nil {
		return out, err
	}
	if status < 400 {
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("decoding response: %w", err)
		}
		return out, nil
	}

	// A rejected command answers 502 with a CommandResponse carrying the
	// failure; other statuses carry the usual error body.
	if json.Unmarshal(data, &out) == nil && out.Command != "" {
		return out, nil
	}
	var apiErr types.ErrorResponse
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return out, fmt.Errorf("%s", apiErr.Message)
	}
	return out, fmt.Errorf("gateway returned status %d", status)
}

// RenameDevice changes a device's friendly name.
func (c *Client) RenameDevice(ctx context.Context, id, name string) (types.DeviceResponse, error) {
	var out types.DeviceResponse
	body := types.RenameDeviceRequest{FriendlyName: name}
	err := c.do(ctx, http.MethodPatch, "/api/v1/devices/"+url.PathEscape(id), body, &out)
	return out, err
}

// StartDiscovery opens the pairing window.
func (c *Client) StartDiscovery(ctx context.Context, seconds int) (types.StartDiscoveryResponse, error) {
	var out types.StartDiscoveryResponse
	body := types.StartDiscoveryRequest{DurationSeconds: seconds}
	err := c.do(ctx, http.MethodPost, "/api/v1/discovery/start", body, &out)
	return out, err
}

// StopDiscovery closes the pairing window.
func (c *Client) StopDiscovery(ctx context.Context) (types.StopDiscoveryResponse, error) {
	var out types.StopDiscoveryResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/discovery/stop", nil, &out)
	return out, err
}

// ListAutomations fetches rules, optionally filtered by source device.
func (c *Client) ListAutomations(ctx context.Context, sourceIEEE string) (types.RulesResponse, error) {
	path := "/api/v1/automations"
	if sourceIEEE != "" {
		path += "?source_ieee=" + url.QueryEscape(sourceIEEE)
	}
	var out types.RulesResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateAutomation registers a new rule.
func (c *Client) CreateAutomation(ctx context.Context, req automation.CreateRequest) (types.RuleResponse, error) {
	var out types.RuleResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/automations", req, &out)
	return out, err
}

// ToggleAutomation flips a rule's enabled flag.
func (c *Client) ToggleAutomation(ctx context.Context, id string) (types.RuleResponse, error) {
	var out types.RuleResponse
	err := c.do(ctx, http.MethodPatch, "/api/v1/automations/"+url.PathEscape(id)+"/toggle", nil, &out)
	return out, err
}

// DeleteAutomation removes a rule.
func (c *Client) DeleteAutomation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/automations/"+url.PathEscape(id), nil, nil)
}

// AutomationTrace fetches recent rule evaluations.
func (c *Client) AutomationTrace(ctx context.Context) (types.TraceResponse, error) {
	var out types.TraceResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/automations/trace", nil, &out)
	return out, err
}

// LinkQuality fetches the link quality snapshot feeding the presence zones.
func (c *Client) LinkQuality(ctx context.Context) (types.LinksResponse, error) {
	var out types.LinksResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/zones/links", nil, &out)
	return out, err
}

// Spectrum fetches the latest energy scan.
func (c *Client) Spectrum(ctx context.Context) (types.SpectrumLatestResponse, error) {
	var out types.SpectrumLatestResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/spectrum", nil, &out)
	return out, err
}
