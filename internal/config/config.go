// Package config handles multisense configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the shipped firmware: evaluate every 250ms, publish
// on change no more than once per 3s, heartbeat at least every 30s.
const (
	DefaultSoftIntervalMS = 3000
	DefaultHardIntervalMS = 30000
	DefaultPollIntervalMS = 250
	DefaultBrokerPort     = 1883
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./multisense.yaml, ~/.config/multisense/multisense.yaml,
// /etc/multisense/multisense.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"multisense.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "multisense", "multisense.yaml"))
	}

	paths = append(paths, "/etc/multisense/multisense.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all multisense configuration.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Node    NodeConfig    `yaml:"node"`
	Sensors SensorsConfig `yaml:"sensors"`
	Metrics MetricsConfig `yaml:"metrics"`
	DataDir string        `yaml:"data_dir"`
	Log     LogConfig     `yaml:"log"`
}

// MQTTConfig defines the broker connection and topic. Values captured
// through provisioning (see the settings store) fill any field left
// empty here, so a config file with a bare `mqtt:` block is valid on a
// provisioned device.
type MQTTConfig struct {
	// Broker is the broker URL (mqtt://host:1883, mqtts:// for TLS).
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// DeviceID names this node in topics and as the MQTT client ID.
	// Defaults to the persisted instance ID.
	DeviceID string `yaml:"device_id"`

	// Topic is the status topic. Empty means multisensor/<device_id>/status.
	Topic string `yaml:"topic"`

	// DiscoveryPrefix enables Home Assistant MQTT discovery when
	// non-empty (conventionally "homeassistant").
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// NodeConfig defines the publish scheduler.
type NodeConfig struct {
	// SoftIntervalMS is the minimum spacing between publishes while
	// values keep changing.
	SoftIntervalMS int `yaml:"soft_interval_ms"`

	// HardIntervalMS is the maximum staleness before a heartbeat
	// publish is forced.
	HardIntervalMS int `yaml:"hard_interval_ms"`

	// PollIntervalMS is how often sensors are read and the scheduler
	// evaluated.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// ImmediateOnDirty bypasses the soft gate for change-triggered
	// publishes.
	ImmediateOnDirty bool `yaml:"immediate_on_dirty"`
}

// SensorsConfig selects which inputs exist on this node.
type SensorsConfig struct {
	Temperature bool `yaml:"temperature"`
	Humidity    bool `yaml:"humidity"`
	Lux         bool `yaml:"lux"`
	Motion      bool `yaml:"motion"`

	// SwitchAliases assigns property names to the contact inputs, in
	// terminal order. An empty alias disables that input.
	SwitchAliases []string `yaml:"switch_aliases"`

	// Simulate replaces hardware drivers with simulated sources.
	Simulate bool `yaml:"simulate"`
}

// MetricsConfig defines the Prometheus endpoint. Empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address"` // e.g. ":9090"
}

// LogConfig defines logging behavior.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration: simulated sensors, firmware
// intervals, no broker (provisioning supplies one).
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			SoftIntervalMS: DefaultSoftIntervalMS,
			HardIntervalMS: DefaultHardIntervalMS,
			PollIntervalMS: DefaultPollIntervalMS,
		},
		Sensors: SensorsConfig{
			Temperature: true,
			Humidity:    true,
			Lux:         true,
			Motion:      true,
			Simulate:    true,
		},
		DataDir: "data",
	}
}

// Validate checks cross-field constraints. Placeholder values from an
// unprovisioned device (empty broker, empty aliases) are legal; what
// must hold is the interval ordering and alias uniqueness.
func (c *Config) Validate() error {
	if c.Node.SoftIntervalMS < 0 || c.Node.HardIntervalMS <= 0 {
		return fmt.Errorf("intervals must be positive (soft=%d hard=%d)",
			c.Node.SoftIntervalMS, c.Node.HardIntervalMS)
	}
	if c.Node.SoftIntervalMS > c.Node.HardIntervalMS {
		return fmt.Errorf("soft interval %dms exceeds hard interval %dms",
			c.Node.SoftIntervalMS, c.Node.HardIntervalMS)
	}
	if c.Node.PollIntervalMS <= 0 {
		return fmt.Errorf("poll interval must be positive (got %d)", c.Node.PollIntervalMS)
	}

	seen := make(map[string]bool)
	for i, alias := range c.Sensors.SwitchAliases {
		alias = strings.TrimSpace(alias)
		c.Sensors.SwitchAliases[i] = alias
		if alias == "" {
			continue // disabled terminal
		}
		if seen[alias] {
			return fmt.Errorf("duplicate switch alias %q", alias)
		}
		seen[alias] = true
	}

	return nil
}

// StatusTopic returns the configured topic, or the default
// multisensor/<device_id>/status.
func (c *MQTTConfig) StatusTopic() string {
	if c.Topic != "" {
		return c.Topic
	}
	return "multisensor/" + c.DeviceID + "/status"
}
