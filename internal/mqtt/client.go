// Package mqtt connects the bridge to the broker: lux readings and entity
// set commands flow in, retained state reports and discovery documents flow
// out.
package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Config holds MQTT broker connection settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// Client manages the broker connection. Message flow lives in Subscriber and
// Publisher.
type Client struct {
	client mqtt.Client
}

// NewClient builds the underlying paho client. onConnect runs on every
// connect and reconnect, so subscriptions and retained publishes set up
// there survive broker restarts. The client ID gets a random suffix: two
// instances sharing an ID would keep kicking each other off the broker.
func NewClient(cfg Config, onConnect func(mqtt.Client)) *Client {
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("Connected to MQTT broker")
		if onConnect != nil {
			onConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost, reconnecting")
	})

	return &Client{client: mqtt.NewClient(opts)}
}

// Connect dials the broker.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Native returns the underlying paho client for Subscriber and Publisher.
func (c *Client) Native() mqtt.Client {
	return c.client
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Info().Msg("Disconnected from MQTT broker")
}
