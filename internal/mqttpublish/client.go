// Package mqttpublish publishes transport, meter, and error-bus events to an
// MQTT broker, grounded on the teacher's internal/mqtt client (paho
// connect/publish/reconnect shape), generalized from a fixed
// detection-result payload to a small set of topic-suffixed JSON payloads
// for this engine's own event kinds.
package mqttpublish

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
)

// Config holds the connection parameters for one broker.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic; events publish to Topic+"/"+suffix
}

// Client publishes JSON-encoded engine events to an MQTT broker, retrying
// connection loss with exponential backoff.
type Client struct {
	config Config
	logger *slog.Logger

	mu             sync.Mutex
	internalClient mqtt.Client
	lastConnAttempt time.Time
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopped         bool
}

// NewClient builds a Client from the engine's MQTT settings.
func NewClient(settings *conf.Settings) *Client {
	return &Client{
		config: Config{
			Broker:   settings.MQTT.Broker,
			ClientID: "tapedeck",
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			Topic:    settings.MQTT.Topic,
		},
		logger:        logging.ForService("mqttpublish"),
		reconnectStop: make(chan struct{}),
	}
}

// Connect resolves the broker hostname and establishes the MQTT session.
// Repeated calls within a minute of the last attempt are rejected to avoid
// hammering a broker that is down.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < time.Minute {
		return errors.New(errors.NewStd("connection attempt too recent")).
			Component("mqttpublish").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	if err := c.resolveBrokerHostname(); err != nil {
		return errors.Wrap(err).
			Component("mqttpublish").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New(errors.NewStd("connection timeout")).
			Component("mqttpublish").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err).
			Component("mqttpublish").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	return nil
}

func (c *Client) resolveBrokerHostname() error {
	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	host := u.Hostname()
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
	}
	return nil
}

// Publish sends payload (already JSON-encoded) to Topic+"/"+suffix.
func (c *Client) Publish(ctx context.Context, suffix string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		return errors.New(errors.NewStd("not connected to MQTT broker")).
			Component("mqttpublish").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	topic := c.config.Topic + "/" + suffix
	token := c.internalClient.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New(errors.NewStd("publish timeout")).
			Component("mqttpublish").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err).
			Component("mqttpublish").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

// IsConnected reports whether the underlying client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *Client) isConnectedLocked() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the MQTT session and stops any pending reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	if !c.stopped {
		c.stopped = true
		close(c.reconnectStop)
	}
}

func (c *Client) onConnect(mqtt.Client) {
	c.logger.Info("connected to mqtt broker", "broker", c.config.Broker)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("mqtt connection lost", "broker", c.config.Broker, "error", err)
	c.startReconnectTimer()
}

func (c *Client) startReconnectTimer() {
	c.reconnectTimer = time.AfterFunc(time.Minute, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *Client) reconnectWithBackoff() {
	backoff := time.Second
	const maxBackoff = 5 * time.Minute

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.logger.Info("reconnected to mqtt broker")
			c.startReconnectTimer()
			return
		}

		c.logger.Warn("mqtt reconnect failed", "error", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
