// Package config loads the knx-actuator configuration.
//
// Loading order:
//  1. Hard-coded defaults (the reference board)
//  2. YAML file, if a path is given
//  3. KNXACT_* environment variables
//
// The result is validated before it is returned.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/logic"
)

// Config is the root configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Timing  TimingConfig  `yaml:"timing"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Thread  ThreadConfig  `yaml:"thread"`
	Serial  SerialConfig  `yaml:"serial"`
	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`

	// Poll is the loop tick of a device that does not sleep.
	Poll time.Duration `yaml:"poll"`
	// Heartbeat is the status heartbeat interval; zero disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`
	// WaitForClock blocks startup until the system clock is set.
	WaitForClock bool `yaml:"wait_for_clock"`
}

// DeviceConfig identifies the KNX device.
type DeviceConfig struct {
	Serial string `yaml:"serial"`
	Sleepy bool   `yaml:"sleepy"`
}

// TimingConfig mirrors logic.Timing.
type TimingConfig struct {
	LongPress     time.Duration `yaml:"long_press"`
	FlashPeriod   time.Duration `yaml:"flash_period"`
	KNXFlicker    time.Duration `yaml:"knx_flicker"`
	ThreadFlicker time.Duration `yaml:"thread_flicker"`
	FlickerCount  int           `yaml:"flicker_count"`
	PollPeriod    time.Duration `yaml:"poll_period"`
	MinAwake      time.Duration `yaml:"min_awake"`
	MinSleep      time.Duration `yaml:"min_sleep"`
	MaxSleep      time.Duration `yaml:"max_sleep"`
}

// GPIOConfig describes the board wiring.
type GPIOConfig struct {
	Chip     string        `yaml:"chip"`
	Debounce time.Duration `yaml:"debounce"`
	// Lines maps switch number (1-4) to its GPIO line.
	Lines map[int]LineConfig `yaml:"lines"`

	PushButton  int `yaml:"push_button"`
	ActuatorLED int `yaml:"actuator_led"`
	Indicator   int `yaml:"indicator"`
	ModeButton  int `yaml:"mode_button"`
}

// LineConfig is one GPIO line.
type LineConfig struct {
	Offset    int  `yaml:"offset"`
	ActiveLow bool `yaml:"active_low"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	BufferSize int    `yaml:"buffer_size"`
}

// ThreadConfig configures the OpenThread adapter.
type ThreadConfig struct {
	OTCtl     string        `yaml:"ot_ctl"`
	PSKd      string        `yaml:"pskd"`
	JoinRetry time.Duration `yaml:"join_retry"`
}

// SerialConfig configures the knxctl serial line. An empty port disables it.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// StoreConfig configures persistence. An empty path keeps the device record
// in memory only.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from path. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the reference board configuration.
func Default() *Config {
	t := logic.DefaultTiming()
	p := logic.DefaultPins()

	lines := make(map[int]LineConfig, len(gpio.DefaultLines))
	for pin, lc := range gpio.DefaultLines {
		lines[int(pin)] = LineConfig{Offset: lc.Offset, ActiveLow: lc.ActiveLow}
	}

	return &Config{
		Device: DeviceConfig{
			Serial: "00FA10010401",
		},
		Timing: TimingConfig{
			LongPress:     t.LongPress,
			FlashPeriod:   t.FlashPeriod,
			KNXFlicker:    t.KNXFlickerPeriod,
			ThreadFlicker: t.ThreadFlickerPeriod,
			FlickerCount:  t.FlickerCount,
			PollPeriod:    t.PollPeriod,
			MinAwake:      t.MinAwake,
			MinSleep:      t.MinSleep,
			MaxSleep:      t.MaxSleep,
		},
		GPIO: GPIOConfig{
			Chip:        "gpiochip0",
			Debounce:    50 * time.Millisecond,
			Lines:       lines,
			PushButton:  int(p.PushButton),
			ActuatorLED: int(p.ActuatorLED),
			Indicator:   int(p.Indicator),
			ModeButton:  int(p.ModeButton),
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "knx-actuator",
		},
		Thread: ThreadConfig{
			OTCtl:     "/usr/sbin/ot-ctl",
			PSKd:      "J01NME",
			JoinRetry: 6 * time.Second,
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Store: StoreConfig{
			Path: "/perm/knx-actuator/device.db",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Poll:      10 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
	}
}

// applyEnvOverrides applies KNXACT_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNXACT_DEVICE_SERIAL"); v != "" {
		cfg.Device.Serial = v
	}
	if v := os.Getenv("KNXACT_DEVICE_SLEEPY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Warnf("config: ignoring KNXACT_DEVICE_SLEEPY=%q: %v", v, err)
		} else {
			cfg.Device.Sleepy = b
		}
	}

	if v := os.Getenv("KNXACT_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("KNXACT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("KNXACT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("KNXACT_THREAD_PSKD"); v != "" {
		cfg.Thread.PSKd = v
	}
	if v := os.Getenv("KNXACT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("KNXACT_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("KNXACT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Serial == "" {
		errs = append(errs, "device.serial is required")
	}

	t := c.Timing
	if t.LongPress <= 0 {
		errs = append(errs, "timing.long_press must be positive")
	}
	if t.FlashPeriod < 2*time.Millisecond {
		errs = append(errs, "timing.flash_period must be at least 2ms")
	}
	if t.KNXFlicker < 2*time.Millisecond || t.ThreadFlicker < 2*time.Millisecond {
		errs = append(errs, "timing flicker periods must be at least 2ms")
	}
	if t.FlickerCount <= 0 {
		errs = append(errs, "timing.flicker_count must be positive")
	}
	if c.Device.Sleepy {
		if t.PollPeriod <= 0 {
			errs = append(errs, "timing.poll_period must be positive")
		}
		if t.MinSleep < 0 || t.MaxSleep <= t.MinSleep {
			errs = append(errs, "timing.max_sleep must exceed timing.min_sleep")
		}
		if c.Thread.JoinRetry <= 0 {
			errs = append(errs, "thread.join_retry must be positive")
		}
	}

	for name, pin := range map[string]int{
		"gpio.push_button":  c.GPIO.PushButton,
		"gpio.actuator_led": c.GPIO.ActuatorLED,
		"gpio.indicator":    c.GPIO.Indicator,
		"gpio.mode_button":  c.GPIO.ModeButton,
	} {
		if !gpio.Pin(pin).Valid() {
			errs = append(errs, fmt.Sprintf("%s must be a switch number 1-4, got %d", name, pin))
			continue
		}
		if _, ok := c.GPIO.Lines[pin]; !ok {
			errs = append(errs, fmt.Sprintf("%s: no line configured for switch %d", name, pin))
		}
	}
	if c.GPIO.PushButton == c.GPIO.ModeButton {
		errs = append(errs, "gpio.push_button and gpio.mode_button must differ")
	}
	if c.GPIO.ActuatorLED == c.GPIO.Indicator {
		errs = append(errs, "gpio.actuator_led and gpio.indicator must differ")
	}
	if c.GPIO.Debounce < 0 {
		errs = append(errs, "gpio.debounce must not be negative")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		errs = append(errs, "serial.baud must be positive")
	}
	if c.Poll <= 0 {
		errs = append(errs, "poll must be positive")
	}
	if c.Heartbeat < 0 {
		errs = append(errs, "heartbeat must not be negative")
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level: %v", err))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, "logging.format must be text or json")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LogicConfig returns the controller configuration.
func (c *Config) LogicConfig() logic.Config {
	return logic.Config{
		Timing: logic.Timing{
			LongPress:           c.Timing.LongPress,
			FlashPeriod:         c.Timing.FlashPeriod,
			KNXFlickerPeriod:    c.Timing.KNXFlicker,
			ThreadFlickerPeriod: c.Timing.ThreadFlicker,
			FlickerCount:        c.Timing.FlickerCount,
			PollPeriod:          c.Timing.PollPeriod,
			MinAwake:            c.Timing.MinAwake,
			MinSleep:            c.Timing.MinSleep,
			MaxSleep:            c.Timing.MaxSleep,
		},
		Pins: logic.Pins{
			PushButton:  gpio.Pin(c.GPIO.PushButton),
			ActuatorLED: gpio.Pin(c.GPIO.ActuatorLED),
			Indicator:   gpio.Pin(c.GPIO.Indicator),
			ModeButton:  gpio.Pin(c.GPIO.ModeButton),
		},
		Sleepy: c.Device.Sleepy,
	}
}

// LineConfig returns the GPIO wiring keyed by switch position.
func (c *Config) LineConfig() map[gpio.Pin]gpio.LineConfig {
	out := make(map[gpio.Pin]gpio.LineConfig, len(c.GPIO.Lines))
	for n, lc := range c.GPIO.Lines {
		out[gpio.Pin(n)] = gpio.LineConfig{Offset: lc.Offset, ActiveLow: lc.ActiveLow}
	}
	return out
}
