package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func testClient() *Client {
	cfg := Config{
		Broker:          "mqtt://broker.local:1883",
		DeviceID:        "garage",
		StatusTopic:     "multisensor/garage/status",
		DiscoveryPrefix: "homeassistant",
	}
	device := NewDeviceInfo("0192aa00-0000-7000-8000-000000000000", "garage")
	props := []PropertySpec{
		{Name: "temperature", UnitOfMeasurement: "°C", DeviceClass: "temperature"},
		{Name: "motion", Binary: true, DeviceClass: "motion"},
	}
	return New(cfg, device, props, slog.Default())
}

func TestDiscoveryTopic(t *testing.T) {
	t.Parallel()
	c := testClient()

	got := c.discoveryTopic("sensor", "temperature")
	want := "homeassistant/sensor/garage/temperature/config"
	if got != want {
		t.Errorf("discoveryTopic = %q, want %q", got, want)
	}
}

func TestSensorConfig_Analog(t *testing.T) {
	t.Parallel()
	c := testClient()

	sc := c.sensorConfig(c.props[0])
	if sc.StateTopic != "multisensor/garage/status" {
		t.Errorf("StateTopic = %q", sc.StateTopic)
	}
	if sc.ValueTemplate != "{{ value_json.temperature }}" {
		t.Errorf("ValueTemplate = %q", sc.ValueTemplate)
	}
	if sc.AvailabilityTopic != "multisensor/garage/status/availability" {
		t.Errorf("AvailabilityTopic = %q", sc.AvailabilityTopic)
	}
	if sc.PayloadOn != "" {
		t.Errorf("analog sensor has PayloadOn = %q", sc.PayloadOn)
	}
	if componentFor(c.props[0]) != "sensor" {
		t.Error("analog property not announced as sensor")
	}

	// The payload must serialize with the device block attached.
	data, err := json.Marshal(sc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["device"]; !ok {
		t.Error("discovery payload missing device block")
	}
}

func TestSensorConfig_Binary(t *testing.T) {
	t.Parallel()
	c := testClient()

	sc := c.sensorConfig(c.props[1])
	if sc.PayloadOn != "1" || sc.PayloadOff != "0" {
		t.Errorf("binary payloads = %q/%q, want 1/0", sc.PayloadOn, sc.PayloadOff)
	}
	if componentFor(c.props[1]) != "binary_sensor" {
		t.Error("binary property not announced as binary_sensor")
	}
}

func TestPublish_RequiresConnect(t *testing.T) {
	t.Parallel()
	c := testClient()

	if err := c.Publish(context.Background(), "t", []byte("{}"), true); err == nil {
		t.Error("Publish before Connect should error")
	}
	if c.Connected() {
		t.Error("Connected() = true before Connect")
	}
}
