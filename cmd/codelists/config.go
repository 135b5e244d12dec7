package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	codelists "github.com/opensafely-core/opencodelists-sub001"
	"github.com/opensafely-core/opencodelists-sub001/definition"
	"github.com/opensafely-core/opencodelists-sub001/pkg/logger"
	"github.com/opensafely-core/opencodelists-sub001/store"
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds CLI configuration. It is read from an optional YAML file and
// then overridden by any flag given on the command line.
type Config struct {
	Terminology   string       `yaml:"terminology"`
	System        string       `yaml:"system"`
	ConceptFilter string       `yaml:"concept_filter"`
	Output        OutputFormat `yaml:"output"`
	Tolerance     float64      `yaml:"tolerance"`
	Store         string       `yaml:"store"`
	CacheSize     int          `yaml:"cache_size"`
	LogLevel      string       `yaml:"log_level"`
	Workers       int          `yaml:"workers"`
	Metrics       string       `yaml:"metrics"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor flags say otherwise.
func DefaultConfig() *Config {
	return &Config{
		Output:    OutputText,
		Tolerance: definition.DefaultNoiseTolerance,
		CacheSize: store.DefaultCacheSize,
		LogLevel:  "info",
		Workers:   runtime.NumCPU(),
	}
}

// loadConfig layers the config file and changed flags over the defaults.
func (c *cli) loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg := DefaultConfig()

	if c.configPath != "" {
		data, err := os.ReadFile(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", c.configPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("terminology") {
		cfg.Terminology = c.flags.Terminology
	}
	if flags.Changed("system") {
		cfg.System = c.flags.System
	}
	if flags.Changed("concept-filter") {
		cfg.ConceptFilter = c.flags.ConceptFilter
	}
	if flags.Changed("output") {
		cfg.Output = c.flags.Output
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = c.flags.Tolerance
	}
	if flags.Changed("store") {
		cfg.Store = c.flags.Store
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize = c.flags.CacheSize
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.flags.LogLevel
	}
	if flags.Changed("workers") {
		cfg.Workers = c.flags.Workers
	}
	if flags.Changed("metrics") {
		cfg.Metrics = c.flags.Metrics
	}

	// Parse output format
	switch OutputFormat(strings.ToLower(string(cfg.Output))) {
	case OutputJSON:
		cfg.Output = OutputJSON
	case OutputText, "":
		cfg.Output = OutputText
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", cfg.Output)
	}
	return cfg, nil
}

// Options converts the configuration into validated engine options.
func (cfg *Config) Options() (*codelists.Options, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := codelists.NewOptions(
		codelists.WithNoiseTolerance(cfg.Tolerance),
		codelists.WithCacheSize(cfg.CacheSize),
		codelists.WithStorePath(cfg.Store),
		codelists.WithLogLevel(level),
		codelists.WithWorkers(cfg.Workers),
	)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
