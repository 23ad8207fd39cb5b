package mqtt

import (
	"context"
	"encoding/json"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"multisense/internal/buildinfo"
)

// DeviceInfo holds the Home Assistant device registry fields shared
// across all discovery config payloads. Every property published by
// this node references the same device block so HA groups them under
// a single device page.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// NewDeviceInfo creates a DeviceInfo from the persistent instance ID
// and the device ID. The instance ID is the primary HA identifier
// (stable across renames); the device ID appears in the HA UI.
func NewDeviceInfo(instanceID, deviceID string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{instanceID},
		Name:         deviceID,
		Manufacturer: "multisense",
		Model:        "Multisensor Node",
		SWVersion:    buildinfo.Version,
	}
}

// PropertySpec describes one property of the status payload for
// discovery purposes.
type PropertySpec struct {
	// Name is the JSON key in the status payload.
	Name string

	// Binary marks 0/1 properties (motion, switch contacts); they are
	// announced as binary_sensor entities.
	Binary bool

	Icon              string
	UnitOfMeasurement string
	DeviceClass       string
}

// SensorConfig is the JSON payload for an HA MQTT discovery message.
// All properties share the node's status topic and select their value
// with a template, since the node publishes one flat JSON object.
type SensorConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	Device            DeviceInfo `json:"device"`
	ValueTemplate     string     `json:"value_template,omitempty"`
	PayloadOn         string     `json:"payload_on,omitempty"`
	PayloadOff        string     `json:"payload_off,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
}

// discoveryTopic returns <prefix>/<component>/<device>/<entity>/config.
func (c *Client) discoveryTopic(component, entity string) string {
	return c.cfg.DiscoveryPrefix + "/" + component + "/" + c.cfg.DeviceID + "/" + entity + "/config"
}

// sensorConfig builds the discovery payload for one property.
func (c *Client) sensorConfig(p PropertySpec) SensorConfig {
	sc := SensorConfig{
		Name:              c.cfg.DeviceID + " " + p.Name,
		UniqueID:          c.device.Identifiers[0] + "_" + p.Name,
		StateTopic:        c.cfg.StatusTopic,
		AvailabilityTopic: c.cfg.availabilityTopic(),
		Device:            c.device,
		ValueTemplate:     "{{ value_json." + p.Name + " }}",
		Icon:              p.Icon,
		UnitOfMeasurement: p.UnitOfMeasurement,
		DeviceClass:       p.DeviceClass,
	}
	if p.Binary {
		sc.PayloadOn = "1"
		sc.PayloadOff = "0"
	}
	return sc
}

func componentFor(p PropertySpec) string {
	if p.Binary {
		return "binary_sensor"
	}
	return "sensor"
}

// publishDiscovery announces every property, retained, on the
// discovery prefix. Called on each (re-)connect; a no-op when
// discovery is disabled.
func (c *Client) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	if c.cfg.DiscoveryPrefix == "" {
		return
	}

	for _, p := range c.props {
		topic := c.discoveryTopic(componentFor(p), p.Name)
		payload, err := json.Marshal(c.sensorConfig(p))
		if err != nil {
			c.logger.Error("mqtt marshal discovery payload",
				"property", p.Name, "error", err)
			continue
		}

		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: payload,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			c.logger.Warn("mqtt discovery publish failed",
				"property", p.Name, "topic", topic, "error", err)
		} else {
			c.logger.Debug("mqtt discovery published",
				"property", p.Name, "topic", topic)
		}
	}
}
