// Package config loads and validates the toolkit configuration. Values
// mirror the documented defaults; YAML files override selectively.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the toolkit.
type Config struct {
	// MaxPDUSize is the locally proposed maximum PDU length in bytes.
	MaxPDUSize uint32 `yaml:"max_pdu_size" validate:"min=1024,max=16777215"`

	ConnectTimeout     Duration `yaml:"connect_timeout" validate:"min=0"`
	ReadTimeout        Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout       Duration `yaml:"write_timeout" validate:"min=0"`
	AssociationTimeout Duration `yaml:"association_timeout" validate:"min=0"`

	// Pool settings.
	AcquireTimeout Duration `yaml:"acquire_timeout" validate:"min=0"`
	IdleTimeout    Duration `yaml:"idle_timeout" validate:"min=0"`
	MaxConnections int      `yaml:"max_connections" validate:"min=1"`
	MinConnections int      `yaml:"min_connections" validate:"min=0,ltefield=MaxConnections"`

	// Circuit breaker settings.
	FailureThreshold int      `yaml:"failure_threshold" validate:"min=1"`
	SuccessThreshold int      `yaml:"success_threshold" validate:"min=1"`
	ResetTimeout     Duration `yaml:"reset_timeout" validate:"min=0"`
	FailureWindow    Duration `yaml:"failure_window" validate:"min=0"`

	// Retry settings.
	MaxAttempts  int      `yaml:"max_attempts" validate:"min=1"`
	InitialDelay Duration `yaml:"initial_delay" validate:"min=0"`
	MaxDelay     Duration `yaml:"max_delay" validate:"min=0"`

	// Store-and-forward queue settings.
	MaxRetryAttempts                int      `yaml:"max_retry_attempts" validate:"min=1"`
	CompletedRetentionDuration      Duration `yaml:"completed_retention_duration" validate:"min=0"`
	MaxConcurrentTransfers          int      `yaml:"max_concurrent_transfers" validate:"min=1"`
	PriorityOrdering                bool     `yaml:"priority_ordering"`
	AutoRetryOnConnectivityRestored bool     `yaml:"auto_retry_on_connectivity_restored"`
	MaxQueueItems                   int      `yaml:"max_queue_items" validate:"min=0"`
	MaxQueueSizeBytes               int64    `yaml:"max_queue_size_bytes" validate:"min=0"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		MaxPDUSize:         16384,
		ConnectTimeout:     Seconds(30),
		ReadTimeout:        Seconds(30),
		WriteTimeout:       Seconds(30),
		AssociationTimeout: Seconds(30),

		AcquireTimeout: Seconds(30),
		IdleTimeout:    Seconds(300),
		MaxConnections: 4,
		MinConnections: 0,

		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     Seconds(30),
		FailureWindow:    Seconds(60),

		MaxAttempts:  3,
		InitialDelay: Seconds(1),
		MaxDelay:     Seconds(30),

		MaxRetryAttempts:                10,
		CompletedRetentionDuration:      Seconds(3600),
		MaxConcurrentTransfers:          1,
		PriorityOrdering:                true,
		AutoRetryOnConnectivityRestored: true,
	}
}

var validate = validator.New()

// Validate checks invariants across the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read configuration: %w", err)
	}
	return Parse(data)
}
