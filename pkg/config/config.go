// Package config loads the clusterd configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dd0wney/cluso-clustermgr/pkg/cluster"
	"github.com/dd0wney/cluso-clustermgr/pkg/validation"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the daemon configuration file.
type Config struct {
	Cluster cluster.Config `yaml:"cluster"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Grid    GridConfig     `yaml:"grid"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// MetricsConfig controls the HTTP listener serving /metrics and health.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required,hostname_port"`
}

// GridConfig sizes the in-process grid fabric.
type GridConfig struct {
	// Nodes is how many coordinators the daemon runs on one fabric.
	Nodes int `yaml:"nodes" validate:"min=1,max=64"`
	// ExpectedNodes makes membership health degrade below this size; 0 disables it.
	ExpectedNodes int `yaml:"expected_nodes" validate:"min=0,max=64"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Cluster: cluster.DefaultConfig(),
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		Grid:    GridConfig{Nodes: 3},
	}
}

// Validate checks if configuration is valid
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Parse overlays YAML data on the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}
