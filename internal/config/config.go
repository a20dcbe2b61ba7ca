// Package config loads the daemon configuration from a YAML file.
// Missing files and missing fields fall back to defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/amperage-follower/internal/current"
	"github.com/sweeney/amperage-follower/internal/gpio"
	"github.com/sweeney/amperage-follower/internal/logic"
)

// Config represents the application configuration.
type Config struct {
	Control ControlConfig `yaml:"control"`
	Sensor  SensorConfig  `yaml:"sensor"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// ControlConfig contains relay timing and the trigger threshold.
type ControlConfig struct {
	CheckInterval      time.Duration `yaml:"check_interval"`
	FollowerShutoffLag time.Duration `yaml:"follower_shutoff_lag"`
	EventShutoffLag    time.Duration `yaml:"event_shutoff_lag"`
	TriggerMilliamps   uint32        `yaml:"trigger_milliamps"`
	PollInterval       time.Duration `yaml:"poll_interval"`
}

// SensorConfig contains transducer, ADC and serial bridge parameters.
type SensorConfig struct {
	SampleDuration    time.Duration `yaml:"sample_duration"`
	FullScaleCounts   uint16        `yaml:"full_scale_counts"`
	MaxRatedMilliamps uint32        `yaml:"max_rated_milliamps"`
	PeakToPeakToRMS   float32       `yaml:"peak_to_peak_to_rms"`
	Port              string        `yaml:"port"`
	BaudRate          int           `yaml:"baud_rate"`
}

// GPIOConfig contains the output chip and BCM line offsets.
type GPIOConfig struct {
	Chip          string `yaml:"chip"`
	FollowerRelay int    `yaml:"follower_relay"`
	FollowerLED   int    `yaml:"follower_led"`
	EventRelay    int    `yaml:"event_relay"`
	EventLED      int    `yaml:"event_led"`
}

// MQTTConfig contains broker settings.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server settings.
// Basic auth is enabled when Username is set.
type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	MDNS         *bool  `yaml:"mdns"`
	Username     string `yaml:"username,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	ctl := logic.DefaultConfig()
	sensor := current.DefaultConfig()
	pins := gpio.DefaultPins()
	mdns := true

	return &Config{
		Control: ControlConfig{
			CheckInterval:      ctl.CheckInterval,
			FollowerShutoffLag: ctl.FollowerShutoffLag,
			EventShutoffLag:    ctl.EventShutoffLag,
			TriggerMilliamps:   ctl.TriggerMilliamps,
			PollInterval:       10 * time.Millisecond,
		},
		Sensor: SensorConfig{
			SampleDuration:    sensor.SampleDuration,
			FullScaleCounts:   sensor.FullScaleCounts,
			MaxRatedMilliamps: sensor.MaxRatedMilliamps,
			PeakToPeakToRMS:   sensor.PeakToPeakToRMS,
			Port:              "/dev/ttyACM0",
			BaudRate:          115200,
		},
		GPIO: GPIOConfig{
			Chip:          "gpiochip0",
			FollowerRelay: pins.FollowerRelay,
			FollowerLED:   pins.FollowerLED,
			EventRelay:    pins.EventRelay,
			EventLED:      pins.EventLED,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "amperage-follower",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
			MDNS: &mdns,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ensureDefaults fills zero-valued fields that have no meaningful zero.
// TriggerMilliamps and Heartbeat may legitimately be 0 and are left alone.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Control.CheckInterval == 0 {
		c.Control.CheckInterval = def.Control.CheckInterval
	}
	if c.Control.PollInterval == 0 {
		c.Control.PollInterval = def.Control.PollInterval
	}
	if c.Sensor.SampleDuration == 0 {
		c.Sensor.SampleDuration = def.Sensor.SampleDuration
	}
	if c.Sensor.FullScaleCounts == 0 {
		c.Sensor.FullScaleCounts = def.Sensor.FullScaleCounts
	}
	if c.Sensor.MaxRatedMilliamps == 0 {
		c.Sensor.MaxRatedMilliamps = def.Sensor.MaxRatedMilliamps
	}
	if c.Sensor.PeakToPeakToRMS == 0 {
		c.Sensor.PeakToPeakToRMS = def.Sensor.PeakToPeakToRMS
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.HTTP.MDNS == nil {
		c.HTTP.MDNS = def.HTTP.MDNS
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Controller timestamps are 32-bit milliseconds. Intervals are compared
// as unsigned distances; a deadline must stay within half the range to
// still be recognised as passed one millisecond after it expires.
const (
	maxInterval = time.Duration(math.MaxUint32) * time.Millisecond
	maxLag      = time.Duration(math.MaxInt32-1) * time.Millisecond
)

// Validate reports configuration values the controller cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Control.CheckInterval <= 0 {
		errs = append(errs, errors.New("control.check_interval must be positive"))
	}
	if c.Control.CheckInterval > maxInterval {
		errs = append(errs, fmt.Errorf("control.check_interval must not exceed %v", maxInterval))
	}
	if c.Control.FollowerShutoffLag < 0 || c.Control.EventShutoffLag < 0 {
		errs = append(errs, errors.New("shutoff lags must not be negative"))
	}
	if c.Control.FollowerShutoffLag > maxLag || c.Control.EventShutoffLag > maxLag {
		errs = append(errs, fmt.Errorf("shutoff lags must not exceed %v", maxLag))
	}
	if c.MQTT.Heartbeat > maxInterval {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat must not exceed %v", maxInterval))
	}
	if c.Control.PollInterval <= 0 {
		errs = append(errs, errors.New("control.poll_interval must be positive"))
	}
	if c.Sensor.SampleDuration <= 0 {
		errs = append(errs, errors.New("sensor.sample_duration must be positive"))
	}
	if c.Sensor.SampleDuration >= c.Control.CheckInterval {
		errs = append(errs, errors.New("sensor.sample_duration must be shorter than control.check_interval"))
	}
	if c.Sensor.FullScaleCounts == 0 {
		errs = append(errs, errors.New("sensor.full_scale_counts must be positive"))
	}
	if c.Sensor.PeakToPeakToRMS <= 0 {
		errs = append(errs, errors.New("sensor.peak_to_peak_to_rms must be positive"))
	}

	if c.HTTP.Username != "" {
		if _, err := bcrypt.Cost([]byte(c.HTTP.PasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("http.password_hash: %w", err))
		}
	}

	seen := map[int]string{}
	for name, pin := range map[string]int{
		"follower_relay": c.GPIO.FollowerRelay,
		"follower_led":   c.GPIO.FollowerLED,
		"event_relay":    c.GPIO.EventRelay,
		"event_led":      c.GPIO.EventLED,
	} {
		if pin < 0 {
			errs = append(errs, fmt.Errorf("gpio.%s: invalid pin %d", name, pin))
			continue
		}
		if other, dup := seen[pin]; dup {
			errs = append(errs, fmt.Errorf("gpio.%s: pin %d already used by gpio.%s", name, pin, other))
			continue
		}
		seen[pin] = name
	}

	return errors.Join(errs...)
}

// MDNSEnabled reports whether the status page should be advertised.
func (c *Config) MDNSEnabled() bool {
	return c.HTTP.MDNS == nil || *c.HTTP.MDNS
}

// Controller returns the relay controller tuning.
func (c *Config) Controller() logic.Config {
	return logic.Config{
		TriggerMilliamps:   c.Control.TriggerMilliamps,
		CheckInterval:      c.Control.CheckInterval,
		FollowerShutoffLag: c.Control.FollowerShutoffLag,
		EventShutoffLag:    c.Control.EventShutoffLag,
	}
}

// Estimator returns the current estimator settings.
func (c *Config) Estimator() current.Config {
	return current.Config{
		SampleDuration:    c.Sensor.SampleDuration,
		FullScaleCounts:   c.Sensor.FullScaleCounts,
		MaxRatedMilliamps: c.Sensor.MaxRatedMilliamps,
		PeakToPeakToRMS:   c.Sensor.PeakToPeakToRMS,
	}
}

// Pins returns the output wiring.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		FollowerRelay: c.GPIO.FollowerRelay,
		FollowerLED:   c.GPIO.FollowerLED,
		EventRelay:    c.GPIO.EventRelay,
		EventLED:      c.GPIO.EventLED,
	}
}
