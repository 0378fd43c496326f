// Package config loads plenctl's YAML configuration.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"plenctl/internal/serialport"
)

// Transports.
const (
	TransportUSB    = "usb"
	TransportDryRun = "dryrun"
)

// Config is the top-level configuration file.
type Config struct {
	DeviceMap string        `yaml:"device_map"`
	Transport string        `yaml:"transport"`
	LogLevel  string        `yaml:"log_level"`
	Serial    Serial        `yaml:"serial"`
	Pacing    time.Duration `yaml:"pacing"`
	Compat    Compat        `yaml:"compat"`
}

// Serial configures the USB transport.
type Serial struct {
	Baud          int           `yaml:"baud"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	Match         string        `yaml:"match"`
	ProbePrefixes []string      `yaml:"probe_prefixes"`
	// Probe forces the path-prefix fallback on or off; unset follows the OS.
	Probe *bool `yaml:"probe"`
}

// Compat keeps wire quirks that deployed firmware depends on.
type Compat struct {
	LegacyNameField  bool `yaml:"legacy_name_field"`
	LegacyTailResend bool `yaml:"legacy_tail_resend"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	s := serialport.DefaultConfig()
	return &Config{
		DeviceMap: "device_map.json",
		Transport: TransportUSB,
		LogLevel:  "info",
		Serial: Serial{
			Baud:          s.Baud,
			ReadTimeout:   s.ReadTimeout,
			Match:         s.Match,
			ProbePrefixes: s.ProbePrefixes,
		},
		Pacing: 10 * time.Millisecond,
		Compat: Compat{
			LegacyNameField:  true,
			LegacyTailResend: true,
		},
	}
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportUSB, TransportDryRun:
	default:
		return errors.Errorf("transport %q must be %q or %q", c.Transport, TransportUSB, TransportDryRun)
	}
	if c.Serial.Baud <= 0 {
		return errors.Errorf("serial.baud %d must be positive", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout < 0 {
		return errors.Errorf("serial.read_timeout %s must not be negative", c.Serial.ReadTimeout)
	}
	if c.Pacing < 0 {
		return errors.Errorf("pacing %s must not be negative", c.Pacing)
	}
	return nil
}

// SerialPort returns the connection manager settings.
func (c *Config) SerialPort() serialport.Config {
	cfg := serialport.DefaultConfig()
	cfg.Baud = c.Serial.Baud
	cfg.ReadTimeout = c.Serial.ReadTimeout
	if c.Serial.Match != "" {
		cfg.Match = c.Serial.Match
	}
	if c.Serial.ProbePrefixes != nil {
		cfg.ProbePrefixes = c.Serial.ProbePrefixes
	}
	if c.Serial.Probe != nil {
		cfg.Probe = *c.Serial.Probe
	}
	return cfg
}
