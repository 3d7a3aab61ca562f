package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RunConfigPath string // the run's merged YAML document
	PipelinesPath string // directory of deployed pipeline descriptor manifests

	LogFormat string
	LogLevel  string
}

// NewConfig validates an App configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RunConfigPath == "" {
		return nil, errors.New("RunConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.PipelinesPath == "" {
		return nil, errors.New("PipelinesPath is a required configuration field and cannot be empty")
	}

	return &cfg, nil
}
