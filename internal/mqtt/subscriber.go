package mqtt

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// EventRouter is the routing surface the subscriber feeds.
type EventRouter interface {
	RouteSensor(reconcile.SensorEvent) error
	RouteCommand(reconcile.CommandEvent) error
}

// Subscriber turns broker messages into router events. Handlers never block:
// routing only enqueues onto the per-light engine queues.
type Subscriber struct {
	topics       Topics
	sensorTopics map[string]string // sensor topic -> device
	router       EventRouter
}

// NewSubscriber creates a subscriber for the given per-light sensor topics.
func NewSubscriber(topics Topics, sensorTopics map[string]string, router EventRouter) *Subscriber {
	return &Subscriber{
		topics:       topics,
		sensorTopics: sensorTopics,
		router:       router,
	}
}

// Subscribe registers all handlers on the given connection. Run it from the
// OnConnect hook so subscriptions come back after every reconnect.
func (s *Subscriber) Subscribe(client mqtt.Client) error {
	for topic, device := range s.sensorTopics {
		handler := func(_ mqtt.Client, msg mqtt.Message) {
			s.handleSensor(device, msg)
		}
		if err := subscribeToTopic(client, topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe to sensor topic %s: %w", topic, err)
		}
		log.Info().Str("topic", topic).Str("light", device).Msg("Subscribed to sensor topic")
	}

	wildcard := s.topics.CommandWildcard()
	if err := subscribeToTopic(client, wildcard, s.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to command topic %s: %w", wildcard, err)
	}
	log.Info().Str("topic", wildcard).Msg("Subscribed to command topic")

	return nil
}

func subscribeToTopic(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (s *Subscriber) handleSensor(device string, msg mqtt.Message) {
	lux, err := ParseLux(msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Ignoring unparseable sensor payload")
		return
	}

	if err := s.router.RouteSensor(reconcile.SensorEvent{Device: device, Lux: lux}); err != nil {
		log.Error().Err(err).Str("topic", msg.Topic()).Str("light", device).Msg("Failed to route sensor event")
	}
}

func (s *Subscriber) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	device := s.topics.DeviceFromCommand(msg.Topic())
	if device == "" {
		log.Warn().Str("topic", msg.Topic()).Msg("Command on unrecognized topic")
		return
	}

	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("light", device).Msg("Ignoring malformed command payload")
		return
	}

	err = s.router.RouteCommand(reconcile.CommandEvent{
		Device: device,
		On:     cmd.On,
		Step:   cmd.Step,
		Origin: reconcile.OriginCommand,
	})
	if err != nil {
		log.Error().Err(err).Str("light", device).Msg("Failed to route command event")
	}
}
