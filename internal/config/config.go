// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/mqtt"
)

// Environment overrides for broker credentials.
const (
	EnvUsername = "LAMPD_MQTT_USERNAME"
	EnvPassword = "LAMPD_MQTT_PASSWORD"
)

// Duration is a time.Duration that reads and writes Go duration strings.
type Duration time.Duration

// UnmarshalYAML parses "200ms", "1h" and friends.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config is the root configuration structure.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Timing TimingConfig `yaml:"timing"`
	HTTP   HTTPConfig   `yaml:"http"`
	Limits LimitsConfig `yaml:"limits"`
}

// DeviceConfig identifies the device.
type DeviceConfig struct {
	Hostname     string `yaml:"hostname"`
	InitialState bool   `yaml:"initial_state"`
	MDNS         bool   `yaml:"mdns"`
}

// MQTTConfig defines broker connection settings and feeds.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password,omitempty"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
	QoS            byte   `yaml:"qos"`
	CommandTopic   string `yaml:"command_topic"`
	StateTopic     string `yaml:"state_topic"`
	ThrottleTopic  string `yaml:"throttle_topic"`
	SystemTopic    string `yaml:"system_topic"`
}

// GPIOConfig selects the lamp and switch lines.
type GPIOConfig struct {
	Chip          string `yaml:"chip"`
	LampPin       int    `yaml:"lamp_pin"`
	LampActiveLow bool   `yaml:"lamp_active_low"`
	SwitchPin     int    `yaml:"switch_pin"`
	SwitchPullUp  bool   `yaml:"switch_pullup"`
}

// TimingConfig holds the tunable intervals.
type TimingConfig struct {
	Debounce         Duration `yaml:"debounce"`
	Heartbeat        Duration `yaml:"heartbeat"`
	ThrottleCooldown Duration `yaml:"throttle_cooldown"`
	Poll             Duration `yaml:"poll"`
	ConnectTimeout   Duration `yaml:"connect_timeout"`
	PublishTimeout   Duration `yaml:"publish_timeout"`
}

// HTTPConfig controls the status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LimitsConfig bounds inbound message handling.
type LimitsConfig struct {
	PayloadBytes int `yaml:"payload_bytes"`
	InboxSize    int `yaml:"inbox_size"`
	DrainPerTick int `yaml:"drain_per_tick"`
}

// Default returns the stock configuration for an Adafruit IO "bedroom" feed.
func Default() Config {
	t := logic.DefaultTimings()
	return Config{
		Device: DeviceConfig{
			Hostname: "BedroomLamp",
			MDNS:     true,
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://io.adafruit.com:1883",
			ClientIDPrefix: "lampd",
			QoS:            1,
			CommandTopic:   "{username}/feeds/bedroom",
			StateTopic:     "{username}/feeds/bedroom",
			ThrottleTopic:  "{username}/throttle",
		},
		GPIO: GPIOConfig{
			Chip:      gpio.DefaultChip,
			LampPin:   gpio.DefaultLampPin,
			SwitchPin: gpio.DefaultSwitchPin,
		},
		Timing: TimingConfig{
			Debounce:         Duration(time.Duration(t.Debounce) * time.Millisecond),
			Heartbeat:        Duration(time.Duration(t.Heartbeat) * time.Millisecond),
			ThrottleCooldown: Duration(time.Duration(t.ThrottleCooldown) * time.Millisecond),
			Poll:             Duration(time.Second),
			ConnectTimeout:   Duration(10 * time.Second),
			PublishTimeout:   Duration(5 * time.Second),
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Limits: LimitsConfig{
			PayloadBytes: logic.DefaultPayloadLimit,
			InboxSize:    32,
			DrainPerTick: 16,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Credentials from the environment take precedence over the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvUsername); v != "" {
		c.MQTT.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.MQTT.Password = v
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	topics := c.Topics()
	if topics.Command == "" {
		return errors.New("mqtt.command_topic is required")
	}
	if topics.State == "" {
		return errors.New("mqtt.state_topic is required")
	}
	if topics.Throttle != "" && topics.Throttle == topics.Command {
		return errors.New("mqtt.throttle_topic must differ from mqtt.command_topic")
	}
	if c.GPIO.LampPin == c.GPIO.SwitchPin {
		return fmt.Errorf("gpio.lamp_pin and gpio.switch_pin are both %d", c.GPIO.LampPin)
	}
	if c.Timing.Debounce < 0 || c.Timing.Heartbeat < 0 || c.Timing.ThrottleCooldown < 0 {
		return errors.New("timing intervals must not be negative")
	}
	if c.Timing.Poll <= 0 {
		return errors.New("timing.poll must be positive")
	}
	if c.Timing.PublishTimeout <= 0 || c.Timing.ConnectTimeout <= 0 {
		return errors.New("timing.publish_timeout and timing.connect_timeout must be positive")
	}
	if c.Limits.InboxSize < 1 {
		return errors.New("limits.inbox_size must be at least 1")
	}
	return nil
}

// Topics resolves the {username} placeholder in the configured topics.
func (c Config) Topics() mqtt.Topics {
	expand := func(s string) string {
		return strings.ReplaceAll(s, "{username}", c.MQTT.Username)
	}
	return mqtt.Topics{
		Command:  expand(c.MQTT.CommandTopic),
		State:    expand(c.MQTT.StateTopic),
		Throttle: expand(c.MQTT.ThrottleTopic),
		System:   expand(c.MQTT.SystemTopic),
	}
}

// Timings converts the configured intervals for the reconciliation core.
func (c Config) Timings() logic.Timings {
	return logic.Timings{
		Debounce:         logic.MillisOf(time.Duration(c.Timing.Debounce)),
		Heartbeat:        logic.MillisOf(time.Duration(c.Timing.Heartbeat)),
		ThrottleCooldown: logic.MillisOf(time.Duration(c.Timing.ThrottleCooldown)),
	}
}

// Pins returns the GPIO line selection.
func (c Config) Pins() gpio.Config {
	return gpio.Config{
		Chip:          c.GPIO.Chip,
		LampPin:       c.GPIO.LampPin,
		LampActiveLow: c.GPIO.LampActiveLow,
		SwitchPin:     c.GPIO.SwitchPin,
		SwitchPullUp:  c.GPIO.SwitchPullUp,
	}
}

// Encode renders the configuration as YAML with the password redacted.
func (c Config) Encode() ([]byte, error) {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "********"
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
