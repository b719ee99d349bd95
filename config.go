package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"gregoryjjb/glowchain/channel"
	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/device"
	"gregoryjjb/glowchain/gpio"
)

var ErrValidation = errors.New("validation error")

const ConfigFileName = "glowchain.toml"

// Highest BCM pin broken out on the 40 pin header
const maxPin = 27

type Flags struct {
	ConfigPath string
	Serve      bool
}

type serverConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    string `toml:"port"`
}

type tomlConfig struct {
	Mode          string       `toml:"mode"`
	Mask          *int64       `toml:"mask"`
	SingleChannel string       `toml:"single_channel"`
	Seed          *uint32      `toml:"seed"`
	PollInterval  string       `toml:"poll_interval"`
	LogLevel      string       `toml:"log_level"`
	Pins          gpio.Pinout  `toml:"pins"`
	Server        serverConfig `toml:"server"`
}

type Config struct {
	toml tomlConfig
	path string

	mode         device.Mode
	mask         channel.Mask
	single       channel.Role
	pollInterval time.Duration
	logLevel     zerolog.Level
	serve        bool
	host         string
	port         string
}

func defaultTOML() tomlConfig {
	return tomlConfig{
		Mode:          device.ModeChainFollower.String(),
		SingleChannel: channel.Red.String(),
		PollInterval:  "0s",
		LogLevel:      "info",
		Pins:          gpio.DefaultPinout(),
		Server: serverConfig{
			Host: "127.0.0.1",
			Port: "1225",
		},
	}
}

// NewConfig reads the config file (if any) and applies environment
// overrides from getenv on top of it.
func NewConfig(fs GlowFS, flags Flags, getenv func(string) string) (*Config, error) {
	c := &Config{toml: defaultTOML()}

	path, err := findConfigFile(fs, flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := toml.Unmarshal(data, &c.toml); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
		c.path = path
	}

	if v := getenv("GLOWCHAIN_MODE"); v != "" {
		c.toml.Mode = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.toml.LogLevel = v
	}
	if v := getenv("HOST"); v != "" {
		c.toml.Server.Host = v
	}
	if v := getenv("PORT"); v != "" {
		c.toml.Server.Port = v
	}

	if err := c.resolve(); err != nil {
		return nil, err
	}

	if v := getenv("GLOWCHAIN_MASK"); v != "" {
		m, err := channel.ParseMask(v)
		if err != nil {
			return nil, fmt.Errorf("%w: GLOWCHAIN_MASK: %w", ErrValidation, err)
		}
		c.mask = m
	}

	if err := checkPWM(c.toml.Pins, c.mask, gpio.HardwarePWM); err != nil {
		return nil, err
	}

	c.serve = flags.Serve || c.toml.Server.Enabled

	return c, nil
}

// findConfigFile returns the explicit path, which must exist, or the first
// of ./glowchain.toml and ~/.glowchain.toml that does. An empty result means
// run on defaults.
func findConfigFile(fs GlowFS, explicit string) (string, error) {
	if explicit != "" {
		abs, err := fs.Abs(explicit)
		if err != nil {
			return "", err
		}
		if _, err := fs.Stat(abs); err != nil {
			return "", fmt.Errorf("config file %q: %w", explicit, err)
		}
		return abs, nil
	}

	var candidates []string
	if abs, err := fs.Abs(ConfigFileName); err == nil {
		candidates = append(candidates, abs)
	}
	if home, err := fs.HomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "."+ConfigFileName))
	}

	for _, candidate := range candidates {
		if ok, _ := afero.Exists(fs, candidate); ok {
			return candidate, nil
		}
	}
	return "", nil
}

func (c *Config) resolve() error {
	var err error

	c.mode, err = device.ParseMode(c.toml.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	c.mask = defaultMask(gpio.HardwarePWM)
	if c.toml.Mask != nil {
		m := *c.toml.Mask
		if m < 0 || m > int64(channel.MaskAll) {
			return fmt.Errorf("%w: mask %d is not a 4 bit value", ErrValidation, m)
		}
		c.mask = channel.Mask(m)
	}

	c.single, err = channel.ParseRole(c.toml.SingleChannel)
	if err != nil {
		return fmt.Errorf("%w: single_channel: %w", ErrValidation, err)
	}

	c.pollInterval, err = time.ParseDuration(c.toml.PollInterval)
	if err != nil {
		return fmt.Errorf("%w: poll_interval: %w", ErrValidation, err)
	}
	if c.pollInterval < 0 {
		return fmt.Errorf("%w: poll_interval cannot be negative", ErrValidation)
	}

	c.logLevel, err = zerolog.ParseLevel(strings.ToLower(c.toml.LogLevel))
	if err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrValidation, err)
	}

	if err := validatePinout(c.toml.Pins); err != nil {
		return err
	}

	c.host = c.toml.Server.Host
	c.port = c.toml.Server.Port

	return nil
}

func validatePinout(p gpio.Pinout) error {
	pins := []struct {
		name string
		pin  int
	}{
		{"red", p.Red},
		{"green", p.Green},
		{"blue", p.Blue},
		{"white", p.White},
		{"trigger", p.Trigger},
		{"relay", p.Relay},
		{"noise", p.Noise},
	}

	used := make(map[int]string)
	for _, entry := range pins {
		if entry.pin < 0 || entry.pin > maxPin {
			return fmt.Errorf("%w: %s pin %d out of range 0-%d", ErrValidation, entry.name, entry.pin, maxPin)
		}
		if other, ok := used[entry.pin]; ok {
			return fmt.Errorf("%w: %s and %s both use pin %d", ErrValidation, other, entry.name, entry.pin)
		}
		used[entry.pin] = entry.name
	}
	return nil
}

// defaultMask enables red and green on the hardware board, one channel per
// PWM unit of the default pinout.
func defaultMask(hardware bool) channel.Mask {
	if hardware {
		return 0b1100
	}
	return channel.MaskAll
}

// checkPWM rejects enabled channels the hardware board cannot fade on their
// own: pins without a PWM unit and pins sharing one. The simulated board
// has no such limits, so there the same findings are only logged.
func checkPWM(p gpio.Pinout, mask channel.Mask, strict bool) error {
	units := make(map[int]channel.Channel)
	for _, c := range channel.Active(mask, channel.Declare(p)) {
		unit, ok := gpio.PWMUnit(c.Pin)

		var problem string
		switch other, taken := units[unit]; {
		case !ok:
			problem = fmt.Sprintf("%s pin %d has no hardware PWM", c.Role, c.Pin)
		case taken:
			problem = fmt.Sprintf("%s and %s share PWM unit %d", other.Role, c.Role, unit)
		default:
			units[unit] = c
			continue
		}

		if strict {
			return fmt.Errorf("%w: %s", ErrValidation, problem)
		}
		log.Debug().Str("mask", mask.String()).Msg("Hardware board would refuse: " + problem)
	}
	return nil
}

func (c *Config) Path() string                { return c.path }
func (c *Config) Mode() device.Mode           { return c.mode }
func (c *Config) Mask() channel.Mask          { return c.mask }
func (c *Config) Pinout() gpio.Pinout         { return c.toml.Pins }
func (c *Config) LogLevel() zerolog.Level     { return c.logLevel }
func (c *Config) PollInterval() time.Duration { return c.pollInterval }
func (c *Config) Serve() bool                 { return c.serve }

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.host, c.port)
}

func (c *Config) DeviceOptions(clk clock.Clock) device.Options {
	return device.Options{
		Mode:         c.mode,
		Mask:         c.mask,
		Pinout:       c.toml.Pins,
		Single:       c.single,
		Seed:         c.toml.Seed,
		PollInterval: c.pollInterval,
		Clock:        clk,
	}
}
