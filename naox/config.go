package naox

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/edwinhayes/naox/qi"
	"github.com/pkg/errors"
)

// Config configures an Application.
type Config struct {
	// Name identifies the application on the bus and in logs.
	Name string
	// Address of the robot bus, "host:port" or "tcp://host:port".
	Address string
	// LogLevel is a logrus level name.
	LogLevel string
	// SpinInterval is how often Run checks whether the session is alive.
	SpinInterval time.Duration
	// Announcement, when set, is spoken as Run starts.
	Announcement string
	// ExitOnInterrupt makes Run return, shutting the session down, on
	// SIGINT. It is unrelated to the robot SDK's auto-exit, which ends the
	// process when the bus connection drops; here a lost bus surfaces as
	// errors from service calls and Run keeps going until stopped.
	ExitOnInterrupt bool
}

// DefaultConfig targets a bus on the local machine.
func DefaultConfig() Config {
	return Config{
		Name:            "default_application_name",
		Address:         "127.0.0.1:" + qi.DefaultPort,
		LogLevel:        "info",
		SpinInterval:    qi.DefaultSpinInterval,
		ExitOnInterrupt: true,
	}
}

type fileConfig struct {
	Name            string `toml:"name"`
	Address         string `toml:"address"`
	LogLevel        string `toml:"log_level"`
	SpinInterval    string `toml:"spin_interval"`
	Announcement    string `toml:"announcement"`
	ExitOnInterrupt bool   `toml:"exit_on_interrupt"`
}

// LoadConfig reads a TOML file over DefaultConfig. Keys missing from the
// file keep their default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "load naox config")
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("spin_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SpinInterval))
		if err != nil {
			return Config{}, errors.Wrap(err, "load naox config: spin_interval")
		}
		cfg.SpinInterval = d
	}
	if meta.IsDefined("announcement") {
		cfg.Announcement = raw.Announcement
	}
	if meta.IsDefined("exit_on_interrupt") {
		cfg.ExitOnInterrupt = raw.ExitOnInterrupt
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can open a session.
func (cfg Config) Validate() error {
	if cfg.Name == "" {
		return errors.New("naox config: name is empty")
	}
	if _, err := qi.NormalizeURL(cfg.Address); err != nil {
		return errors.Wrap(err, "naox config")
	}
	if cfg.SpinInterval < 0 {
		return errors.New("naox config: spin_interval is negative")
	}
	return nil
}
