package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Config carries the broker connection parameters the node was
// provisioned with.
type Config struct {
	// Broker is the broker URL (mqtt://, mqtts:// or ssl://).
	Broker   string
	Username string
	Password string

	// DeviceID is used as the MQTT client ID and in default topics.
	DeviceID string

	// StatusTopic receives the retained status payload.
	StatusTopic string

	// DiscoveryPrefix enables HA discovery when non-empty.
	DiscoveryPrefix string
}

func (c Config) availabilityTopic() string {
	return c.StatusTopic + "/availability"
}

// Client manages the broker connection. Publish failures surface to
// the caller; reconnection happens in the background and the node
// simply retries on the next cycle.
type Client struct {
	cfg       Config
	device    DeviceInfo
	props     []PropertySpec
	logger    *slog.Logger
	cm        *autopaho.ConnectionManager
	connected atomic.Bool
}

// New creates a Client but does not connect. props drives HA discovery
// and may be empty.
func New(cfg Config, device DeviceInfo, props []PropertySpec, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		device: device,
		props:  props,
		logger: logger,
	}
}

// Connect starts the connection manager. It returns once the manager
// is running; the connection itself is established (and re-established
// after drops) in the background. Use [Client.AwaitConnection] to wait
// for the first broker handshake.
func (c *Client) Connect(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := c.cfg.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: c.cfg.Username,
		ConnectPassword: []byte(c.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.connected.Store(true)
			c.logger.Info("mqtt connected to broker", "broker", c.cfg.Broker)
			c.publishDiscovery(ctx, cm)
			c.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			c.connected.Store(false)
			c.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "multisense-" + c.cfg.DeviceID,
			OnServerDisconnect: func(_ *paho.Disconnect) {
				c.connected.Store(false)
			},
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.cm = cm
	return nil
}

// AwaitConnection blocks until the broker connection is established or
// ctx expires. It doubles as the connwatch probe.
func (c *Client) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return fmt.Errorf("mqtt client not started")
	}
	return c.cm.AwaitConnection(ctx)
}

// Connected reports whether the broker session is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Publish sends payload to topic at QoS 1. The node publishes its
// status retained in every case, so late subscribers always receive
// the current state.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if c.cm == nil {
		return fmt.Errorf("mqtt client not started")
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect publishes an "offline" availability message before
// closing the connection. The provided context bounds how long to wait
// for the publish and disconnect to complete.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.cm == nil {
		return nil
	}
	c.publishAvailability(ctx, c.cm, "offline")
	return c.cm.Disconnect(ctx)
}

func (c *Client) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   c.cfg.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		c.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		c.logger.Info("mqtt availability published", "status", status)
	}
}
