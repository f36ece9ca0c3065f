// Package config loads and validates the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is the shared validator instance for struct-tag validation.
var validate = validator.New()

// Config holds every tunable of the fluid network engine. All fields have
// working defaults; a zero-value Config is not usable, call Default.
type Config struct {
	// TickRate is the nominal fixed timestep in ticks per second.
	TickRate float64 `yaml:"tick_rate" validate:"gt=0,lte=1000"`

	// LargeNetworkThreshold is the member count above which a network is
	// advanced on a stride instead of every tick.
	LargeNetworkThreshold int `yaml:"large_network_threshold" validate:"gte=1"`

	// SchedulerStride is how many ticks a large network may skip between
	// advances.
	SchedulerStride int `yaml:"scheduler_stride" validate:"gte=1,lte=64"`

	// SplitTraversalBudget caps flood-fill visits per tick when a removal
	// re-partitions a network. Oversized splits resume next tick.
	SplitTraversalBudget int `yaml:"split_traversal_budget" validate:"gte=16"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// MetricsNamespace prefixes every Prometheus metric name.
	MetricsNamespace string `yaml:"metrics_namespace" validate:"omitempty,alphanum"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		TickRate:              60,
		LargeNetworkThreshold: 256,
		SchedulerStride:       4,
		SplitTraversalBudget:  4096,
		LogLevel:              "info",
		MetricsNamespace:      "fluidnet",
	}
}

// Load reads and validates a YAML configuration file. Missing keys keep
// their defaults; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and returns an error naming every
// violated field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}

// TickInterval returns the nominal seconds per tick.
func (c Config) TickInterval() float64 {
	return 1.0 / c.TickRate
}
