package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/config"
	"github.com/dokzlo13/irlightd/internal/db"
	"github.com/dokzlo13/irlightd/internal/homeassistant"
	"github.com/dokzlo13/irlightd/internal/ledger"
	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger

	// IR actuation through HomeAssistant scripts
	HA       *homeassistant.Client
	Actuator *homeassistant.ScriptActuator

	// High-level services
	Bridge    *BridgeService
	Scheduler *SchedulerService
	Health    *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Transition ledger is optional: without a database path the bridge
	// keeps believed state in memory only.
	var recorder reconcile.Recorder
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		recorder = s.Ledger
	} else {
		log.Info().Msg("No database path configured, transition ledger disabled")
	}

	// HomeAssistant client and the script actuator shared by all lights
	s.HA = homeassistant.NewClient(
		cfg.HomeAssistant.Address,
		cfg.HomeAssistant.Token,
		cfg.HomeAssistant.Timeout.Duration(),
	)

	scripts := make(map[string]homeassistant.Scripts, len(cfg.Lights))
	for _, lc := range cfg.Lights {
		scripts[lc.ID] = homeassistant.Scripts{
			TurnOn:   lc.Actions.TurnOn,
			TurnOff:  lc.Actions.TurnOff,
			StepUp:   lc.Actions.StepUp,
			StepDown: lc.Actions.StepDown,
		}
	}
	s.Actuator = homeassistant.NewScriptActuator(s.HA, scripts, cfg.HomeAssistant.RateLimitRPS)

	// Bridge service: MQTT transport plus one sync engine per light
	bridge, err := NewBridgeService(cfg, s.Actuator, recorder)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Bridge = bridge

	// Scheduler injects configured commands through the same router
	// commands from MQTT go through.
	s.Scheduler, err = NewSchedulerService(cfg, bridge.Router, s.Ledger)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Health service exposes liveness plus light state introspection
	s.Health = NewHealthService(cfg, bridge, s.Ledger)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Verify the HomeAssistant API is reachable before going online
	if err := s.HA.Ping(ctx); err != nil {
		return err
	}

	// Engines must be draining their queues before the broker delivers
	s.Bridge.StartBackground(ctx)

	if err := s.Bridge.Start(ctx); err != nil {
		return err
	}

	s.Scheduler.Start(ctx)
	s.Health.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bridge != nil {
		s.Bridge.Close()
	}
	if s.HA != nil {
		s.HA.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
