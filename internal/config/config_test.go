package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper to create an int pointer
func intPtr(v int) *int {
	return &v
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
mqtt:
  broker: tcp://localhost:1883
homeassistant:
  address: http://ha.local:8123
  token: secret
lights:
  - id: living_room
    sensor_topic: zigbee2mqtt/living_room_lux
    resume_step: 2
    buckets:
      - { step: 0, min_lux: 0, max_lux: 90 }
      - { step: 1, min_lux: 90, max_lux: 180 }
      - { step: 2, min_lux: 180, max_lux: 500 }
    actions:
      turn_on: script.living_room_ir_on
      turn_off: script.living_room_ir_off
      step_up: script.living_room_ir_up
      step_down: script.living_room_ir_down
schedules:
  - light: living_room
    at: "22:30"
    state: "off"
`

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "UTC")
	}
	if cfg.MQTT.TopicPrefix != "irlight" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "irlight")
	}
	if cfg.MQTT.DiscoveryPrefix != "homeassistant" {
		t.Errorf("MQTT.DiscoveryPrefix = %q, want %q", cfg.MQTT.DiscoveryPrefix, "homeassistant")
	}
	if cfg.MQTT.KeepAlive.Duration() != 60*time.Second {
		t.Errorf("MQTT.KeepAlive = %v, want %v", cfg.MQTT.KeepAlive.Duration(), 60*time.Second)
	}
	if cfg.MQTT.QueueSize != 16 {
		t.Errorf("MQTT.QueueSize = %d, want %d", cfg.MQTT.QueueSize, 16)
	}
	if cfg.HomeAssistant.Timeout.Duration() != 30*time.Second {
		t.Errorf("HomeAssistant.Timeout = %v, want %v", cfg.HomeAssistant.Timeout.Duration(), 30*time.Second)
	}
	if cfg.HomeAssistant.RateLimitRPS != 2.0 {
		t.Errorf("HomeAssistant.RateLimitRPS = %v, want %v", cfg.HomeAssistant.RateLimitRPS, 2.0)
	}
	if cfg.Ledger.RetentionDays != 30 {
		t.Errorf("Ledger.RetentionDays = %d, want %d", cfg.Ledger.RetentionDays, 30)
	}
	if cfg.Healthcheck.Port != 9090 {
		t.Errorf("Healthcheck.Port = %d, want %d", cfg.Healthcheck.Port, 9090)
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout.Duration(), 5*time.Second)
	}

	// Name falls back to the light ID
	if cfg.Lights[0].Name != "living_room" {
		t.Errorf("Lights[0].Name = %q, want %q", cfg.Lights[0].Name, "living_room")
	}
	if cfg.Lights[0].MaxStep() != 2 {
		t.Errorf("MaxStep() = %d, want %d", cfg.Lights[0].MaxStep(), 2)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("IRLIGHTD_TEST_TOKEN", "from-env")

	content := `
mqtt:
  broker: ${IRLIGHTD_TEST_BROKER:tcp://fallback:1883}
homeassistant:
  address: http://ha.local:8123
  token: ${IRLIGHTD_TEST_TOKEN}
lights:
  - id: l1
    sensor_topic: sensors/l1
    buckets:
      - { step: 0, min_lux: 0, max_lux: 100 }
      - { step: 1, min_lux: 100, max_lux: 500 }
    actions:
      turn_on: script.on
      turn_off: script.off
      step_up: script.up
      step_down: script.down
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HomeAssistant.Token != "from-env" {
		t.Errorf("Token = %q, want %q", cfg.HomeAssistant.Token, "from-env")
	}
	if cfg.MQTT.Broker != "tcp://fallback:1883" {
		t.Errorf("Broker = %q, want %q", cfg.MQTT.Broker, "tcp://fallback:1883")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			MQTT:          MQTTConfig{Broker: "tcp://localhost:1883"},
			HomeAssistant: HomeAssistantConfig{Address: "http://ha:8123", Token: "secret"},
			Timezone:      "UTC",
			Lights: []LightConfig{
				{
					ID:          "l1",
					SensorTopic: "sensors/l1",
					ResumeStep:  1,
					Buckets: []BucketConfig{
						{Step: 0, MinLux: 0, MaxLux: 100},
						{Step: 1, MinLux: 100, MaxLux: 500},
					},
					Actions: ActionsConfig{
						TurnOn: "script.on", TurnOff: "script.off",
						StepUp: "script.up", StepDown: "script.down",
					},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing_broker",
			mutate:  func(c *Config) { c.MQTT.Broker = "" },
			wantErr: true,
		},
		{
			name:    "missing_ha_address",
			mutate:  func(c *Config) { c.HomeAssistant.Address = "" },
			wantErr: true,
		},
		{
			name:    "missing_ha_token",
			mutate:  func(c *Config) { c.HomeAssistant.Token = "" },
			wantErr: true,
		},
		{
			name:    "no_lights",
			mutate:  func(c *Config) { c.Lights = nil },
			wantErr: true,
		},
		{
			name:    "bad_timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "empty_light_id",
			mutate:  func(c *Config) { c.Lights[0].ID = "" },
			wantErr: true,
		},
		{
			name:    "duplicate_light_id",
			mutate:  func(c *Config) { c.Lights = append(c.Lights, c.Lights[0]) },
			wantErr: true,
		},
		{
			name:    "missing_sensor_topic",
			mutate:  func(c *Config) { c.Lights[0].SensorTopic = "" },
			wantErr: true,
		},
		{
			name:    "no_buckets",
			mutate:  func(c *Config) { c.Lights[0].Buckets = nil },
			wantErr: true,
		},
		{
			name:    "missing_action",
			mutate:  func(c *Config) { c.Lights[0].Actions.StepDown = "" },
			wantErr: true,
		},
		{
			name:    "resume_step_zero",
			mutate:  func(c *Config) { c.Lights[0].ResumeStep = 0 },
			wantErr: true,
		},
		{
			name:    "resume_step_above_max",
			mutate:  func(c *Config) { c.Lights[0].ResumeStep = 5 },
			wantErr: true,
		},
		{
			name: "schedule_unknown_light",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "nope", At: "07:00", State: "on"}}
			},
			wantErr: true,
		},
		{
			name: "schedule_bad_time",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "7am", State: "on"}}
			},
			wantErr: true,
		},
		{
			name: "schedule_bad_state",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00", State: "dim"}}
			},
			wantErr: true,
		},
		{
			name: "schedule_no_state_no_step",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00"}}
			},
			wantErr: true,
		},
		{
			name: "schedule_step_only",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00", Step: intPtr(1)}}
			},
			wantErr: false,
		},
		{
			name: "schedule_step_zero_means_off",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00", Step: intPtr(0)}}
			},
			wantErr: false,
		},
		{
			name: "schedule_step_above_max",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00", Step: intPtr(9)}}
			},
			wantErr: true,
		},
		{
			name: "schedule_on_with_step_zero",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Light: "l1", At: "07:00", State: "on", Step: intPtr(0)}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionsScript(t *testing.T) {
	a := &ActionsConfig{
		TurnOn: "script.on", TurnOff: "script.off",
		StepUp: "script.up", StepDown: "script.down",
	}

	tests := []struct {
		action   string
		expected string
	}{
		{"turn_on", "script.on"},
		{"turn_off", "script.off"},
		{"step_up", "script.up"},
		{"step_down", "script.down"},
		{"blink", ""},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := a.Script(tt.action); got != tt.expected {
				t.Errorf("Script(%q) = %q, want %q", tt.action, got, tt.expected)
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	content := `
mqtt:
  broker: tcp://localhost:1883
  keep_alive: 30s
  connect_timeout: 1m
homeassistant:
  address: http://ha:8123
  token: secret
  timeout: 5s
lights:
  - id: l1
    sensor_topic: sensors/l1
    buckets:
      - { step: 0, min_lux: 0, max_lux: 100 }
      - { step: 1, min_lux: 100, max_lux: 500 }
    actions:
      turn_on: script.on
      turn_off: script.off
      step_up: script.up
      step_down: script.down
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.KeepAlive.Duration() != 30*time.Second {
		t.Errorf("KeepAlive = %v, want %v", cfg.MQTT.KeepAlive.Duration(), 30*time.Second)
	}
	if cfg.MQTT.ConnectTimeout.Duration() != time.Minute {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.MQTT.ConnectTimeout.Duration(), time.Minute)
	}
	if cfg.HomeAssistant.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want %v", cfg.HomeAssistant.Timeout.Duration(), 5*time.Second)
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	content := `
mqtt:
  broker: tcp://localhost:1883
  keep_alive: soon
homeassistant:
  address: http://ha:8123
  token: secret
lights: []
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}
