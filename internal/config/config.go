// Package config loads the arbor command configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/backlog"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendHTTP   = "http"
)

// Config is the full command configuration. Zero fields take the Default values.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Backend BackendConfig `yaml:"backend"`
	Server  ServerConfig  `yaml:"server"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Policy  PolicyConfig  `yaml:"policy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BackendConfig selects the ticket backend.
type BackendConfig struct {
	Kind string `yaml:"kind"`
	// Latency is added to every memory backend call, to make loading states visible.
	Latency time.Duration `yaml:"latency"`
	Redis   RedisConfig   `yaml:"redis"`
	// URL is the base address of a ticket API when Kind is http.
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	// Seed writes the sample tickets when the backlog is empty.
	Seed bool `yaml:"seed"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Metrics     bool   `yaml:"metrics"`
	MaxSessions int    `yaml:"max_sessions"`
}

type RuntimeConfig struct {
	// Workers bounds concurrently running backend calls.
	Workers       int `yaml:"workers"`
	MaxMicrosteps int `yaml:"max_microsteps"`
}

type PolicyConfig struct {
	Close       string `yaml:"close"`
	UpdateError string `yaml:"update_error"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: string(logging.FormatText)},
		Backend: BackendConfig{
			Kind: BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "arbor:",
				Seed:   true,
			},
		},
		Server: ServerConfig{
			Addr:        ":8080",
			Metrics:     true,
			MaxSessions: 1000,
		},
		Runtime: RuntimeConfig{Workers: 64},
		Policy:  PolicyConfig{Close: "clear", UpdateError: "separate"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.Backend.Kind {
	case BackendMemory, BackendRedis:
	case BackendHTTP:
		if c.Backend.URL == "" {
			errs = append(errs, errors.New("backend.url is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend kind %q", c.Backend.Kind))
	}
	if c.Runtime.Workers < 1 {
		errs = append(errs, fmt.Errorf("runtime.workers must be positive, got %d", c.Runtime.Workers))
	}
	if _, err := c.BacklogPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BacklogPolicy parses the policy section.
func (c Config) BacklogPolicy() (backlog.Policy, error) {
	closePolicy, err := backlog.ParseClosePolicy(c.Policy.Close)
	if err != nil {
		return backlog.Policy{}, err
	}
	updatePolicy, err := backlog.ParseUpdateErrorPolicy(c.Policy.UpdateError)
	if err != nil {
		return backlog.Policy{}, err
	}
	return backlog.Policy{Close: closePolicy, UpdateError: updatePolicy}, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
