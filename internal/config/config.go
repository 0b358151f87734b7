// Package config loads the optional YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/salesmachine/internal/pipeline"
)

// DefaultDatabase is the database path used when neither the config file
// nor --db names one.
const DefaultDatabase = "salesmachine.db"

// DefaultKeyEnv is the environment variable read for the edge key when the
// file does not set one.
const DefaultKeyEnv = "SALESMACHINE_EDGE_KEY"

// Config is the file configuration. Zero fields keep their defaults.
type Config struct {
	Database   string         `yaml:"database"`
	CatalogDir string         `yaml:"catalog_dir"`
	Edge       EdgeConfig     `yaml:"edge"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
}

// EdgeConfig locates the edge functions.
type EdgeConfig struct {
	BaseURL string        `yaml:"base_url"`
	Key     string        `yaml:"key"`
	KeyEnv  string        `yaml:"key_env"`
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig tunes lead processing.
type PipelineConfig struct {
	MaxSteps    int `yaml:"max_steps"`
	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batch_size"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		Edge: EdgeConfig{
			KeyEnv:  DefaultKeyEnv,
			Timeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxSteps:    pipeline.DefaultMaxSteps,
			Concurrency: pipeline.DefaultConcurrency,
			BatchSize:   pipeline.DefaultBatchSize,
		},
	}
}

// Load reads a config file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.Database == "":
		return errors.New("database must not be empty")
	case c.Pipeline.MaxSteps < 1:
		return fmt.Errorf("pipeline.max_steps must be positive, got %d", c.Pipeline.MaxSteps)
	case c.Pipeline.Concurrency < 1:
		return fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency)
	case c.Pipeline.BatchSize < 1:
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	case c.Edge.Timeout < 0:
		return fmt.Errorf("edge.timeout must not be negative, got %s", c.Edge.Timeout)
	}
	return nil
}

// EdgeKey returns the configured key, falling back to the key environment
// variable.
func (c Config) EdgeKey() string {
	if c.Edge.Key != "" {
		return c.Edge.Key
	}
	if c.Edge.KeyEnv != "" {
		return os.Getenv(c.Edge.KeyEnv)
	}
	return ""
}
