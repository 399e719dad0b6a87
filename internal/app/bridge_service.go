package app

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/brightness"
	"github.com/dokzlo13/irlightd/internal/config"
	"github.com/dokzlo13/irlightd/internal/mqtt"
	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// BridgeService wraps the MQTT transport and the per-light sync engines.
type BridgeService struct {
	cfg *config.Config

	Client     *mqtt.Client
	Publisher  *mqtt.Publisher
	Subscriber *mqtt.Subscriber
	Router     *reconcile.Router

	lights []mqtt.Light
}

// NewBridgeService builds one sync engine per configured light and the
// MQTT plumbing around them.
func NewBridgeService(cfg *config.Config, actuator reconcile.Actuator, recorder reconcile.Recorder) (*BridgeService, error) {
	s := &BridgeService{cfg: cfg}

	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)

	client := mqtt.NewClient(mqtt.Config{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		KeepAlive:      cfg.MQTT.KeepAlive.Duration(),
		ConnectTimeout: cfg.MQTT.ConnectTimeout.Duration(),
	}, s.onConnect)
	s.Client = client
	s.Publisher = mqtt.NewPublisher(client.Native(), topics, cfg.MQTT.DiscoveryPrefix)

	engines := make([]*reconcile.Engine, 0, len(cfg.Lights))
	sensorTopics := make(map[string]string, len(cfg.Lights))
	s.lights = make([]mqtt.Light, 0, len(cfg.Lights))

	for _, lc := range cfg.Lights {
		buckets := make([]brightness.Bucket, 0, len(lc.Buckets))
		for _, bc := range lc.Buckets {
			buckets = append(buckets, brightness.Bucket{Step: bc.Step, MinLux: bc.MinLux, MaxLux: bc.MaxLux})
		}
		table, err := brightness.NewTable(buckets)
		if err != nil {
			return nil, fmt.Errorf("light %s: %w", lc.ID, err)
		}

		engines = append(engines, reconcile.NewEngine(reconcile.Params{
			Device:     lc.ID,
			Table:      table,
			ResumeStep: lc.ResumeStep,
			Actuator:   actuator,
			Publisher:  s.Publisher,
			Recorder:   recorder,
			QueueSize:  cfg.MQTT.QueueSize,
		}))
		sensorTopics[lc.SensorTopic] = lc.ID
		s.lights = append(s.lights, mqtt.Light{Device: lc.ID, Name: lc.Name, MaxStep: lc.MaxStep()})
	}

	s.Router = reconcile.NewRouter(engines)
	s.Subscriber = mqtt.NewSubscriber(topics, sensorTopics, s.Router)

	return s, nil
}

// onConnect runs on every connect and reconnect: subscriptions and retained
// documents must be restored after a broker restart.
func (s *BridgeService) onConnect(client pahomqtt.Client) {
	if err := s.Subscriber.Subscribe(client); err != nil {
		log.Error().Err(err).Msg("Failed to subscribe after connect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MQTT.ConnectTimeout.Duration())
	defer cancel()

	if err := s.Publisher.PublishDiscovery(ctx, s.lights); err != nil {
		log.Error().Err(err).Msg("Failed to publish discovery documents")
	}

	for _, engine := range s.Router.Engines() {
		state := engine.State()
		if !state.Resolved {
			continue
		}
		report := reconcile.StateReport{Device: engine.Device(), On: state.On, Step: state.Step}
		if err := s.Publisher.PublishState(ctx, report); err != nil {
			log.Error().Err(err).Str("light", engine.Device()).Msg("Failed to republish state")
		}
	}
}

// Start connects to the MQTT broker.
func (s *BridgeService) Start(ctx context.Context) error {
	return s.Client.Connect()
}

// StartBackground starts the per-light engine goroutines.
func (s *BridgeService) StartBackground(ctx context.Context) {
	for _, engine := range s.Router.Engines() {
		go func(e *reconcile.Engine) {
			if err := e.Run(ctx); err != nil {
				log.Error().Err(err).Str("light", e.Device()).Msg("Sync engine error")
			}
		}(engine)
	}
}

// Close releases all resources.
func (s *BridgeService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
