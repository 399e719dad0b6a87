package reconcile

import "fmt"

// Router dispatches inbound events to the engine owning the addressed
// device. It never blocks the transport callback: engines enqueue.
type Router struct {
	engines map[string]*Engine
	order   []*Engine
}

// NewRouter indexes the given engines by device identifier.
func NewRouter(engines []*Engine) *Router {
	m := make(map[string]*Engine, len(engines))
	for _, e := range engines {
		m[e.Device()] = e
	}
	return &Router{engines: m, order: engines}
}

// RouteSensor hands a lux reading to the owning engine. An unknown device
// identifier is surfaced, not dropped: it almost always means a topic or
// configuration mismatch the operator has to fix.
func (r *Router) RouteSensor(ev SensorEvent) error {
	e, ok := r.engines[ev.Device]
	if !ok {
		return fmt.Errorf("sensor event for %q: %w", ev.Device, ErrUnknownDevice)
	}
	e.EnqueueSensor(ev)
	return nil
}

// RouteCommand hands a set request to the owning engine.
func (r *Router) RouteCommand(ev CommandEvent) error {
	e, ok := r.engines[ev.Device]
	if !ok {
		return fmt.Errorf("command event for %q: %w", ev.Device, ErrUnknownDevice)
	}
	e.EnqueueCommand(ev)
	return nil
}

// Engines returns the managed engines in configuration order, for lifecycle
// management and state introspection.
func (r *Router) Engines() []*Engine {
	return r.order
}
