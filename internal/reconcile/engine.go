package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/brightness"
)

// Params carries the per-light wiring for an Engine.
type Params struct {
	Device     string
	Table      *brightness.Table
	ResumeStep int
	Actuator   Actuator
	Publisher  StatePublisher
	Recorder   Recorder // optional
	QueueSize  int
}

// Engine owns one light's believed state. Both inbound paths (sensor
// readings and entity commands) flow through a single queue drained by Run,
// so handling is serialized per light without cross-light coordination.
type Engine struct {
	device     string
	table      *brightness.Table
	resumeStep int

	actuator  Actuator
	publisher StatePublisher
	recorder  Recorder

	store *Store
	queue chan queued
}

// queued is the union of the two inbound event kinds.
type queued struct {
	sensor  *SensorEvent
	command *CommandEvent
}

// NewEngine creates an engine for one configured light.
func NewEngine(p Params) *Engine {
	if p.QueueSize <= 0 {
		p.QueueSize = 16
	}

	return &Engine{
		device:     p.Device,
		table:      p.Table,
		resumeStep: p.ResumeStep,
		actuator:   p.Actuator,
		publisher:  p.Publisher,
		recorder:   p.Recorder,
		store:      NewStore(),
		queue:      make(chan queued, p.QueueSize),
	}
}

// Device returns the device identifier this engine serves.
func (e *Engine) Device() string {
	return e.device
}

// State returns the current believed state.
func (e *Engine) State() State {
	return e.store.Snapshot()
}

// EnqueueSensor queues a lux reading. Non-blocking: a full queue drops the
// event with a warning rather than stalling the transport callback; the next
// reading recomputes the same result anyway.
func (e *Engine) EnqueueSensor(ev SensorEvent) {
	select {
	case e.queue <- queued{sensor: &ev}:
	default:
		log.Warn().Str("light", e.device).Float64("lux", ev.Lux).Msg("Event queue full, dropping sensor event")
	}
}

// EnqueueCommand queues a set request. Non-blocking, same policy as sensor
// events.
func (e *Engine) EnqueueCommand(ev CommandEvent) {
	if ev.Origin == "" {
		ev.Origin = OriginCommand
	}
	select {
	case e.queue <- queued{command: &ev}:
	default:
		log.Warn().Str("light", e.device).Str("origin", string(ev.Origin)).Msg("Event queue full, dropping command event")
	}
}

// Run drains the queue until ctx is cancelled. This single goroutine is what
// makes sensor and command handling mutually exclusive for the light.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Str("light", e.device).Int("max_step", e.table.MaxStep()).Msg("Sync engine started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("light", e.device).Msg("Sync engine stopping")
			return nil

		case q := <-e.queue:
			switch {
			case q.sensor != nil:
				e.handleSensor(ctx, *q.sensor)
			case q.command != nil:
				if err := e.handleCommand(ctx, *q.command); err != nil {
					log.Error().Err(err).Str("light", e.device).Str("origin", string(q.command.Origin)).Msg("Command rejected")
				}
			}
		}
	}
}

// handleSensor recomputes the believed state from a lux reading. The sensor
// path never actuates: ambient light describes the light's output, it does
// not drive the IR remote.
func (e *Engine) handleSensor(ctx context.Context, ev SensorEvent) {
	step, clamped := e.table.Map(ev.Lux)
	if clamped {
		log.Warn().
			Str("light", e.device).
			Float64("lux", ev.Lux).
			Int("step", step).
			Msg("Lux reading outside configured buckets, clamped")
	}

	prev := e.store.Snapshot()
	next := e.store.Set(step != 0, step)

	switch {
	case !next.On:
		log.Debug().Str("light", e.device).Float64("lux", ev.Lux).Msg("Sensor reports light off")
	case !prev.Resolved || !prev.On:
		log.Info().Str("light", e.device).Float64("lux", ev.Lux).Int("step", step).Msg("Sensor reports light on")
	default:
		log.Debug().Str("light", e.device).Float64("lux", ev.Lux).Int("step", step).Msg("Sensor step update")
	}

	e.record(OriginSensor, prev, next)
	e.report(ctx, next)
}

// handleCommand resolves a set request against the believed state, drives
// the actuator and, only if every action went out, adopts and reports the
// target. A failed dispatch leaves the state untouched so the reported
// entity never claims a level the physical light did not reach.
func (e *Engine) handleCommand(ctx context.Context, ev CommandEvent) error {
	prev := e.store.Snapshot()

	targetOn, targetStep, ok, err := e.resolveTarget(prev, ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if !prev.Resolved {
		// First event of either kind fixes the baseline. With nothing to
		// diff against, no IR sequence can be derived safely, so the target
		// is adopted as believed state without touching the actuator.
		next := e.store.Set(targetOn, targetStep)
		log.Warn().
			Str("light", e.device).
			Bool("on", targetOn).
			Int("step", targetStep).
			Msg("State unresolved, adopting command target without actuation")
		e.record(ev.Origin, prev, next)
		e.report(ctx, next)
		return nil
	}

	actions, err := Translate(prev, targetStep, targetOn, e.table.MaxStep(), e.resumeStep)
	if err != nil {
		return err
	}

	for _, action := range actions {
		if err := e.actuator.Dispatch(ctx, e.device, action); err != nil {
			log.Error().
				Err(err).
				Str("light", e.device).
				Str("action", action.String()).
				Msg("Actuator dispatch failed, state left unchanged")
			return nil
		}
	}

	next := e.store.Set(targetOn, targetStep)
	log.Info().
		Str("light", e.device).
		Str("origin", string(ev.Origin)).
		Bool("on", next.On).
		Int("step", next.Step).
		Int("actions", len(actions)).
		Msg("Command applied")

	e.record(ev.Origin, prev, next)
	e.report(ctx, next)
	return nil
}

// resolveTarget turns a set request into a concrete (on, step) pair, filling
// the fields the request left out from the believed state. ok is false for
// an empty request.
func (e *Engine) resolveTarget(current State, ev CommandEvent) (targetOn bool, targetStep int, ok bool, err error) {
	switch {
	case ev.On != nil && !*ev.On:
		// Off absorbs any step field, even an out-of-range one.
		return false, 0, true, nil

	case ev.Step != nil:
		if *ev.Step < 0 || *ev.Step > e.table.MaxStep() {
			return false, 0, false, fmt.Errorf("commanded step %d outside [0, %d]: %w", *ev.Step, e.table.MaxStep(), ErrStepOutOfRange)
		}
		return *ev.Step != 0, *ev.Step, true, nil

	case ev.On != nil:
		if current.Resolved && current.On {
			return true, current.Step, true, nil
		}
		return true, e.resumeStep, true, nil

	default:
		log.Warn().Str("light", e.device).Msg("Command carries neither state nor brightness, ignoring")
		return false, 0, false, nil
	}
}

// record hands an applied transition to the recorder. Updates that leave the
// believed state unchanged are not transitions and are not recorded; the
// state report still goes out for every handled event.
func (e *Engine) record(origin Origin, from, to State) {
	if e.recorder == nil || from == to {
		return
	}
	e.recorder.Record(Transition{Device: e.device, Origin: origin, From: from, To: to})
}

func (e *Engine) report(ctx context.Context, s State) {
	rep := StateReport{Device: e.device, On: s.On, Step: s.Step}
	if err := e.publisher.PublishState(ctx, rep); err != nil {
		log.Error().Err(err).Str("light", e.device).Msg("Failed to publish state report")
	}
}
