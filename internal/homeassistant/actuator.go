package homeassistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// Scripts names the HomeAssistant script entity per relative IR action for
// one light.
type Scripts struct {
	TurnOn   string
	TurnOff  string
	StepUp   string
	StepDown string
}

func (s Scripts) entity(action reconcile.Action) string {
	switch action {
	case reconcile.ActionTurnOn:
		return s.TurnOn
	case reconcile.ActionTurnOff:
		return s.TurnOff
	case reconcile.ActionStepUp:
		return s.StepUp
	case reconcile.ActionStepDown:
		return s.StepDown
	}
	return ""
}

// ScriptActuator drives the IR blaster by invoking one HomeAssistant script
// per remote button press. A shared limiter spaces the calls: the IR
// receiver misses presses that arrive back to back, so burst stays at 1.
type ScriptActuator struct {
	client  *Client
	limiter *rate.Limiter
	scripts map[string]Scripts
}

// NewScriptActuator creates an actuator for the given per-light script sets.
func NewScriptActuator(client *Client, scripts map[string]Scripts, rateLimitRPS float64) *ScriptActuator {
	if rateLimitRPS == 0 {
		rateLimitRPS = 2.0
	}

	return &ScriptActuator{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), 1),
		scripts: scripts,
	}
}

// Dispatch implements reconcile.Actuator.
func (a *ScriptActuator) Dispatch(ctx context.Context, device string, action reconcile.Action) error {
	scripts, ok := a.scripts[device]
	if !ok {
		return fmt.Errorf("no scripts configured for %q: %w", device, reconcile.ErrUnknownDevice)
	}
	entity := scripts.entity(action)
	if entity == "" {
		return fmt.Errorf("no script configured for action %s on %q", action, device)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	log.Debug().
		Str("light", device).
		Str("action", action.String()).
		Str("script", entity).
		Msg("Pressing IR button")

	return a.client.CallScript(ctx, entity)
}
