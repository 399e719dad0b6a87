package reconcile

import "fmt"

// Translate computes the relative IR actions that move a light from the
// believed state to the target. maxStep is the highest configured step,
// resumeStep the step the physical light comes back at after turn_on.
//
// Off is absorbing: turning off emits a single turn_off and no step actions.
// Turning on emits turn_on first, then closes the delta between resumeStep
// and the target. When on/off does not change, exactly |current-target| step
// actions are emitted; a target equal to the current state yields none.
//
// A target outside the configured range is rejected, not clamped: commands
// carry explicit intent, so a bad step means a misconfigured automation the
// operator has to see. For an ON target the valid range is [1, maxStep].
func Translate(current State, targetStep int, targetOn bool, maxStep, resumeStep int) ([]Action, error) {
	if targetStep < 0 || targetStep > maxStep {
		return nil, fmt.Errorf("target step %d outside [0, %d]: %w", targetStep, maxStep, ErrStepOutOfRange)
	}
	if targetOn && targetStep == 0 {
		return nil, fmt.Errorf("target step 0 with target on, on states are [1, %d]: %w", maxStep, ErrStepOutOfRange)
	}

	switch {
	case !targetOn && !current.On:
		return nil, nil
	case !targetOn:
		return []Action{ActionTurnOff}, nil
	case !current.On:
		return append([]Action{ActionTurnOn}, stepActions(resumeStep, targetStep)...), nil
	default:
		return stepActions(current.Step, targetStep), nil
	}
}

// stepActions returns the single-step actions moving the level from one step
// to another.
func stepActions(from, to int) []Action {
	if from == to {
		return nil
	}

	action, n := ActionStepUp, to-from
	if n < 0 {
		action, n = ActionStepDown, -n
	}

	actions := make([]Action, n)
	for i := range actions {
		actions[i] = action
	}
	return actions
}
