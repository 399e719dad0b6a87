package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	MQTT            MQTTConfig          `yaml:"mqtt"`
	HomeAssistant   HomeAssistantConfig `yaml:"homeassistant"`
	Lights          []LightConfig       `yaml:"lights"`
	Schedules       []ScheduleConfig    `yaml:"schedules"`
	Database        DatabaseConfig      `yaml:"database"`
	Ledger          LedgerConfig        `yaml:"ledger"`
	Log             LogConfig           `yaml:"log"`
	Healthcheck     HealthcheckConfig   `yaml:"healthcheck"`
	Timezone        string              `yaml:"timezone"`
	ShutdownTimeout Duration            `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// MQTTConfig contains MQTT broker connection settings
type MQTTConfig struct {
	Broker          string   `yaml:"broker"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	ClientID        string   `yaml:"client_id"`        // Base client ID, a random suffix is appended
	TopicPrefix     string   `yaml:"topic_prefix"`     // Base for light command/state topics
	DiscoveryPrefix string   `yaml:"discovery_prefix"` // HomeAssistant MQTT discovery prefix
	KeepAlive       Duration `yaml:"keep_alive"`
	ConnectTimeout  Duration `yaml:"connect_timeout"`
	QueueSize       int      `yaml:"queue_size"` // Per-light inbound event queue size
}

// HomeAssistantConfig contains HomeAssistant API settings for script invocation
type HomeAssistantConfig struct {
	Address      string   `yaml:"address"`
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for API requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // IR presses per second (default: 2.0)
}

// LightConfig describes one bridged IR light
type LightConfig struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	SensorTopic string         `yaml:"sensor_topic"`
	ResumeStep  int            `yaml:"resume_step"` // Step the light comes back at after turn_on
	Buckets     []BucketConfig `yaml:"buckets"`
	Actions     ActionsConfig  `yaml:"actions"`
}

// BucketConfig maps a half-open lux interval [min_lux, max_lux) to a step
type BucketConfig struct {
	Step   int     `yaml:"step"`
	MinLux float64 `yaml:"min_lux"`
	MaxLux float64 `yaml:"max_lux"`
}

// ActionsConfig names the HomeAssistant script entity per IR action
type ActionsConfig struct {
	TurnOn   string `yaml:"turn_on"`
	TurnOff  string `yaml:"turn_off"`
	StepUp   string `yaml:"step_up"`
	StepDown string `yaml:"step_down"`
}

// ScheduleConfig describes a fixed time-of-day command for a light
type ScheduleConfig struct {
	Light string `yaml:"light"`
	At    string `yaml:"at"`    // HH:MM in the configured timezone
	State string `yaml:"state"` // "on" or "off", may be empty if step is set
	Step  *int   `yaml:"step,omitempty"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // Empty disables the transition ledger
}

// LedgerConfig contains transition ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MaxStep returns the highest configured bucket step
func (l *LightConfig) MaxStep() int {
	max := 0
	for _, b := range l.Buckets {
		if b.Step > max {
			max = b.Step
		}
	}
	return max
}

// Script returns the script entity configured for the given action name,
// one of "turn_on", "turn_off", "step_up", "step_down".
func (a *ActionsConfig) Script(action string) string {
	switch action {
	case "turn_on":
		return a.TurnOn
	case "turn_off":
		return a.TurnOff
	case "step_up":
		return a.StepUp
	case "step_down":
		return a.StepDown
	}
	return ""
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads, parses and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "irlightd"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "irlight"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = Duration(60 * time.Second)
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = Duration(10 * time.Second)
	}
	if cfg.MQTT.QueueSize <= 0 {
		cfg.MQTT.QueueSize = 16
	}

	// HomeAssistant defaults
	if cfg.HomeAssistant.Timeout == 0 {
		cfg.HomeAssistant.Timeout = Duration(30 * time.Second)
	}
	if cfg.HomeAssistant.RateLimitRPS == 0 {
		cfg.HomeAssistant.RateLimitRPS = 2.0
	}

	// Per-light defaults
	for i := range cfg.Lights {
		if cfg.Lights[i].Name == "" {
			cfg.Lights[i].Name = cfg.Lights[i].ID
		}
		if cfg.Lights[i].ResumeStep == 0 {
			cfg.Lights[i].ResumeStep = 1
		}
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for operator mistakes that must fail
// startup rather than surface later as runtime misbehavior.
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.HomeAssistant.Address == "" {
		return fmt.Errorf("homeassistant.address is required")
	}
	if c.HomeAssistant.Token == "" {
		return fmt.Errorf("homeassistant.token is required")
	}
	if len(c.Lights) == 0 {
		return fmt.Errorf("at least one light must be configured")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	maxSteps := make(map[string]int, len(c.Lights))
	for i := range c.Lights {
		l := &c.Lights[i]
		if l.ID == "" {
			return fmt.Errorf("lights[%d]: id is required", i)
		}
		if _, dup := maxSteps[l.ID]; dup {
			return fmt.Errorf("light %q: duplicate id", l.ID)
		}
		maxSteps[l.ID] = l.MaxStep()

		if l.SensorTopic == "" {
			return fmt.Errorf("light %q: sensor_topic is required", l.ID)
		}
		if len(l.Buckets) == 0 {
			return fmt.Errorf("light %q: at least one brightness bucket is required", l.ID)
		}
		if l.Actions.TurnOn == "" || l.Actions.TurnOff == "" ||
			l.Actions.StepUp == "" || l.Actions.StepDown == "" {
			return fmt.Errorf("light %q: all four action scripts (turn_on, turn_off, step_up, step_down) are required", l.ID)
		}
		if max := l.MaxStep(); l.ResumeStep < 1 || l.ResumeStep > max {
			return fmt.Errorf("light %q: resume_step %d outside [1, %d]", l.ID, l.ResumeStep, max)
		}
	}

	for i, s := range c.Schedules {
		maxStep, known := maxSteps[s.Light]
		if !known {
			return fmt.Errorf("schedules[%d]: unknown light %q", i, s.Light)
		}
		if _, err := time.Parse("15:04", s.At); err != nil {
			return fmt.Errorf("schedules[%d]: invalid time %q (want HH:MM)", i, s.At)
		}
		switch s.State {
		case "", "on", "off":
		default:
			return fmt.Errorf("schedules[%d]: invalid state %q (want on or off)", i, s.State)
		}
		if s.State == "" && s.Step == nil {
			return fmt.Errorf("schedules[%d]: state or step is required", i)
		}
		if s.Step != nil && (*s.Step < 0 || *s.Step > maxStep) {
			return fmt.Errorf("schedules[%d]: step %d outside [0, %d]", i, *s.Step, maxStep)
		}
		if s.State == "on" && s.Step != nil && *s.Step == 0 {
			return fmt.Errorf("schedules[%d]: state on with step 0 is contradictory", i)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
