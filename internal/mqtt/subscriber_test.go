package mqtt

import (
	"testing"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeRouter struct {
	sensors  []reconcile.SensorEvent
	commands []reconcile.CommandEvent
	err      error
}

func (r *fakeRouter) RouteSensor(ev reconcile.SensorEvent) error {
	r.sensors = append(r.sensors, ev)
	return r.err
}

func (r *fakeRouter) RouteCommand(ev reconcile.CommandEvent) error {
	r.commands = append(r.commands, ev)
	return r.err
}

func testSubscriber(router *fakeRouter) *Subscriber {
	return NewSubscriber(
		NewTopics("irlight"),
		map[string]string{
			"zigbee2mqtt/living_room_lux": "living_room",
			"zigbee2mqtt/bedroom_lux":     "bedroom",
		},
		router,
	)
}

func TestHandleSensorRoutesReading(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleSensor("living_room", &fakeMessage{
		topic:   "zigbee2mqtt/living_room_lux",
		payload: []byte("450"),
	})

	if len(router.sensors) != 1 {
		t.Fatalf("got %d sensor events, want 1", len(router.sensors))
	}
	ev := router.sensors[0]
	if ev.Device != "living_room" || ev.Lux != 450 {
		t.Errorf("routed %+v, want living_room/450", ev)
	}
}

func TestHandleSensorJSONPayload(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleSensor("bedroom", &fakeMessage{
		topic:   "zigbee2mqtt/bedroom_lux",
		payload: []byte(`{"illuminance":120,"linkquality":63}`),
	})

	if len(router.sensors) != 1 || router.sensors[0].Lux != 120 {
		t.Errorf("routed %+v, want lux 120", router.sensors)
	}
}

func TestHandleSensorUnparseablePayloadIgnored(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleSensor("living_room", &fakeMessage{
		topic:   "zigbee2mqtt/living_room_lux",
		payload: []byte("not a number"),
	})

	if len(router.sensors) != 0 {
		t.Errorf("routed %d events, want 0", len(router.sensors))
	}
}

func TestHandleCommandRoutesEvent(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleCommand(nil, &fakeMessage{
		topic:   "irlight/light/living_room/set",
		payload: []byte(`{"state":"ON","brightness":2}`),
	})

	if len(router.commands) != 1 {
		t.Fatalf("got %d command events, want 1", len(router.commands))
	}
	ev := router.commands[0]
	if ev.Device != "living_room" {
		t.Errorf("Device = %q, want living_room", ev.Device)
	}
	if ev.On == nil || !*ev.On {
		t.Errorf("On = %v, want true", ev.On)
	}
	if ev.Step == nil || *ev.Step != 2 {
		t.Errorf("Step = %v, want 2", ev.Step)
	}
	if ev.Origin != reconcile.OriginCommand {
		t.Errorf("Origin = %q, want %q", ev.Origin, reconcile.OriginCommand)
	}
}

func TestHandleCommandUnrecognizedTopicIgnored(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleCommand(nil, &fakeMessage{
		topic:   "otherprefix/light/x/set",
		payload: []byte(`{"state":"ON"}`),
	})

	if len(router.commands) != 0 {
		t.Errorf("routed %d events, want 0", len(router.commands))
	}
}

func TestHandleCommandMalformedPayloadIgnored(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)

	s.handleCommand(nil, &fakeMessage{
		topic:   "irlight/light/living_room/set",
		payload: []byte(`{"state":`),
	})

	if len(router.commands) != 0 {
		t.Errorf("routed %d events, want 0", len(router.commands))
	}
}

func TestSubscribeRegistersAllTopics(t *testing.T) {
	router := &fakeRouter{}
	s := testSubscriber(router)
	client := &fakeClient{}

	if err := s.Subscribe(client); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for _, topic := range []string{
		"zigbee2mqtt/living_room_lux",
		"zigbee2mqtt/bedroom_lux",
		"irlight/light/+/set",
	} {
		if _, ok := client.subscriptions[topic]; !ok {
			t.Errorf("missing subscription for %q", topic)
		}
	}
	if len(client.subscriptions) != 3 {
		t.Errorf("got %d subscriptions, want 3", len(client.subscriptions))
	}

	// Each sensor handler must carry its own device binding.
	client.subscriptions["zigbee2mqtt/bedroom_lux"](nil, &fakeMessage{
		topic:   "zigbee2mqtt/bedroom_lux",
		payload: []byte("77"),
	})
	if len(router.sensors) != 1 || router.sensors[0].Device != "bedroom" {
		t.Errorf("routed %+v, want device bedroom", router.sensors)
	}
}
