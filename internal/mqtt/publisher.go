package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// Light describes one light entity for discovery registration.
type Light struct {
	Device  string
	Name    string
	MaxStep int
}

// discoveryPayload is the HomeAssistant MQTT discovery document for a JSON
// schema light.
type discoveryPayload struct {
	Name            string `json:"name"`
	UniqueID        string `json:"unique_id"`
	CommandTopic    string `json:"command_topic"`
	StateTopic      string `json:"state_topic"`
	Schema          string `json:"schema"`
	Brightness      bool   `json:"brightness"`
	BrightnessScale int    `json:"brightness_scale"`
}

// Publisher publishes retained entity state and discovery documents.
type Publisher struct {
	client          mqtt.Client
	topics          Topics
	discoveryPrefix string
}

// NewPublisher creates a publisher on an established client.
func NewPublisher(client mqtt.Client, topics Topics, discoveryPrefix string) *Publisher {
	return &Publisher{
		client:          client,
		topics:          topics,
		discoveryPrefix: discoveryPrefix,
	}
}

// PublishState implements reconcile.StatePublisher. Reports are retained so
// HomeAssistant picks the current state back up after its own restart.
func (p *Publisher) PublishState(ctx context.Context, report reconcile.StateReport) error {
	payload, err := FormatState(report.On, report.Step)
	if err != nil {
		return err
	}

	topic := p.topics.State(report.Device)
	if err := p.publish(ctx, topic, payload); err != nil {
		return err
	}

	log.Debug().
		Str("light", report.Device).
		Bool("on", report.On).
		Int("step", report.Step).
		Msg("State report published")
	return nil
}

// PublishDiscovery registers the given lights with HomeAssistant MQTT
// discovery. Retained, and republished on every reconnect, so the entities
// exist without manual YAML on the HomeAssistant side.
func (p *Publisher) PublishDiscovery(ctx context.Context, lights []Light) error {
	for _, l := range lights {
		payload, err := json.Marshal(discoveryPayload{
			Name:            l.Name,
			UniqueID:        fmt.Sprintf("irlightd_%s", l.Device),
			CommandTopic:    p.topics.Command(l.Device),
			StateTopic:      p.topics.State(l.Device),
			Schema:          "json",
			Brightness:      true,
			BrightnessScale: l.MaxStep,
		})
		if err != nil {
			return err
		}

		topic := fmt.Sprintf("%s/light/%s/config", p.discoveryPrefix, l.Device)
		if err := p.publish(ctx, topic, payload); err != nil {
			return err
		}
		log.Info().Str("light", l.Device).Str("topic", topic).Msg("Discovery document published")
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, true, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
