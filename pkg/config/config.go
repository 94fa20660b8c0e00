// Package config loads the gateway configuration from YAML and fills in
// Zigbee network credentials when they are missing or still hold
// placeholder values from a template config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// EnvConfigPath overrides the candidate search when set.
const EnvConfigPath = "ZIGMAN_CONFIG"

// candidatePaths are tried in order when no explicit path is given.
var candidatePaths = []string{
	"./config.yaml",
	"./config/config.yaml",
	"/etc/zigman/config.yaml",
}

// Config is the full gateway configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Zigbee   ZigbeeConfig   `yaml:"zigbee"`
	Matter   MatterConfig   `yaml:"matter"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	DataDir  string         `yaml:"data_dir"`
	Database string         `yaml:"database"`
	LogLevel string         `yaml:"log_level"`

	// path is where the config was loaded from; Save writes back here.
	path string
}

// SerialConfig selects the coordinator serial port. An empty port means
// no radio: the gateway serves cached state only.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MQTTConfig configures the broker connection and topic root.
type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	BaseTopic string `yaml:"base_topic"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the HTTP listen address (host:port).
func (a APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ZigbeeConfig holds the network credentials. PAN ID is 4 uppercase hex
// chars; extended PAN ID is 8 bytes; network key is 16 bytes.
type ZigbeeConfig struct {
	Channel       int    `yaml:"channel"`
	PANID         string `yaml:"pan_id"`
	ExtendedPANID []int  `yaml:"extended_pan_id"`
	NetworkKey    []int  `yaml:"network_key"`
}

// MatterConfig points at an already-running python-matter-server.
// Empty server URL disables the bridge.
type MatterConfig struct {
	ServerURL string `yaml:"server_url"`
}

// SpectrumConfig controls the background energy scanner.
type SpectrumConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Default returns a config with every non-credential field filled.
// Credentials are left empty for EnsureNetworkCredentials to generate.
func Default() *Config {
	return &Config{
		Serial:   SerialConfig{Port: "", Baud: 115200},
		MQTT:     MQTTConfig{Broker: "tcp://localhost:1883", BaseTopic: "zigman"},
		API:      APIConfig{Host: "0.0.0.0", Port: 8080},
		Zigbee:   ZigbeeConfig{},
		Spectrum: SpectrumConfig{IntervalSeconds: 3600},
		DataDir:  "./data",
		Database: "./data/zigbee.db",
		LogLevel: "info",
	}
}

// Load reads the configuration. With an explicit path only that file is
// tried; otherwise the ZIGMAN_CONFIG env var and then the candidate paths
// are searched. When no file exists a default config is returned with its
// path set to the first candidate, so Save creates it there.
func Load(path string) (*Config, error) {
	candidates := candidatePaths
	if path != "" {
		candidates = []string{path}
	} else if env := os.Getenv(EnvConfigPath); env != "" {
		candidates = append([]string{env}, candidates...)
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		cfg := Default()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		cfg.path = p
		cfg.applyFallbacks()
		return cfg, nil
	}

	cfg := Default()
	cfg.path = candidates[0]
	return cfg, nil
}

// Path returns where the config was loaded from (or will be written to).
func (c *Config) Path() string {
	return c.path
}

// Save writes the config back to its source path, creating parent
// directories as needed.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyFallbacks restores defaults for fields the file left zero.
func (c *Config) applyFallbacks() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = "zigman"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Spectrum.IntervalSeconds == 0 {
		c.Spectrum.IntervalSeconds = 3600
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Database == "" {
		c.Database = "./data/zigbee.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
