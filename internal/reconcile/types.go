// Package reconcile keeps the believed state of each IR light in sync with
// ambient lux readings and entity set commands, translating state changes
// into the relative actions the IR remote understands.
package reconcile

import (
	"context"
	"errors"
)

// Action is a single relative command the IR actuator understands.
type Action int

// Actuator vocabulary. The physical remote has no absolute-level command;
// every brightness change is a sequence of single steps.
const (
	ActionTurnOn Action = iota
	ActionTurnOff
	ActionStepUp
	ActionStepDown
)

// String returns the action name used in logs and script lookups
func (a Action) String() string {
	switch a {
	case ActionTurnOn:
		return "turn_on"
	case ActionTurnOff:
		return "turn_off"
	case ActionStepUp:
		return "step_up"
	case ActionStepDown:
		return "step_down"
	default:
		return "unknown"
	}
}

// Origin identifies which path produced an event or transition.
type Origin string

const (
	OriginSensor   Origin = "sensor"
	OriginCommand  Origin = "command"
	OriginSchedule Origin = "schedule"
)

// SensorEvent is one lux reading from the ambient brightness sensor.
type SensorEvent struct {
	Device string
	Lux    float64
}

// CommandEvent is a set request addressed to the light entity. Nil fields
// were not present in the request.
type CommandEvent struct {
	Device string
	On     *bool
	Step   *int
	Origin Origin
}

// StateReport is the externally observable entity state after a transition.
type StateReport struct {
	Device string
	On     bool
	Step   int
}

// Transition describes one applied state change, for auditing.
type Transition struct {
	Device string
	Origin Origin
	From   State
	To     State
}

// Actuator dispatches one relative IR action. Any error means the physical
// light did not move.
type Actuator interface {
	Dispatch(ctx context.Context, device string, action Action) error
}

// StatePublisher republishes the authoritative entity state.
type StatePublisher interface {
	PublishState(ctx context.Context, report StateReport) error
}

// Recorder receives applied transitions. Implementations must tolerate calls
// from multiple engine goroutines.
type Recorder interface {
	Record(t Transition)
}

var (
	// ErrUnknownDevice marks an event addressed to a device that is not configured.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrStepOutOfRange marks a commanded step outside the configured range.
	ErrStepOutOfRange = errors.New("step out of range")
)
