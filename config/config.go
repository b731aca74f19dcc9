// Package config loads the YAML configuration shared by the ooipy commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/acquire"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/hydrophone/fetch"
	"github.com/lsetiawan/ooipy/hydrophone/parallel"
	"github.com/lsetiawan/ooipy/logging"
	"github.com/lsetiawan/ooipy/transcode"
)

// Config is the root of the configuration file.
type Config struct {
	Catalog     catalog.Options         `yaml:"catalog"`
	Fetch       fetch.Options           `yaml:"fetch"`
	Acquisition AcquisitionConfig       `yaml:"acquisition"`
	Spectral    spectral.Params         `yaml:"spectral"`
	Parallel    ParallelConfig          `yaml:"parallel"`
	Decoder     transcode.DecoderConfig `yaml:"decoder"`
	Logging     LoggingConfig           `yaml:"logging"`
}

// AcquisitionConfig holds the defaults applied to every acquisition request.
type AcquisitionConfig struct {
	Ceiling int                  `yaml:"ceiling"`
	Pad     bool                 `yaml:"pad"`
	Policy  hydrophone.GapPolicy `yaml:"policy"`
	FMin    float64              `yaml:"fmin"`
	FMax    float64              `yaml:"fmax"`
}

// ParallelConfig controls the chunked spectral computation.
// ChunkDuration takes precedence over Chunks when both are set.
type ParallelConfig struct {
	Workers       int           `yaml:"workers"`
	Chunks        int           `yaml:"chunks"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
}

// LoggingConfig selects the log level and an optional rotating file.
type LoggingConfig struct {
	Level string             `yaml:"level"`
	File  logging.FileConfig `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Catalog: catalog.DefaultOptions(),
		Fetch:   fetch.DefaultOptions(),
		Acquisition: AcquisitionConfig{
			Ceiling: acquire.DefaultOptions().Ceiling,
			Pad:     true,
			Policy:  hydrophone.GapInterpolate,
		},
		Spectral: spectral.DefaultParams(),
		Parallel: ParallelConfig{
			Workers: runtime.NumCPU(),
			Chunks:  runtime.NumCPU(),
		},
		Decoder: transcode.DefaultDecoderConfig(),
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result. Keys missing
// from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field, each prefixed with its key.
// The decoder command is only checked by NewDecoder so that commands which
// never decode can run without one.
func (c *Config) Validate() error {
	var errs []error
	add := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if c.Catalog.BaseURL == "" {
		add("catalog.base_url", errors.New("cannot be empty"))
	}
	if c.Catalog.Timeout < 0 {
		add("catalog.timeout", fmt.Errorf("must not be negative, got %v", c.Catalog.Timeout))
	}
	if c.Fetch.Concurrency <= 0 {
		add("fetch.concurrency", fmt.Errorf("must be greater than 0, got %d", c.Fetch.Concurrency))
	}
	if c.Fetch.Timeout < 0 {
		add("fetch.timeout", fmt.Errorf("must not be negative, got %v", c.Fetch.Timeout))
	}

	if c.Acquisition.Ceiling < 0 {
		add("acquisition.ceiling", fmt.Errorf("must not be negative, got %d", c.Acquisition.Ceiling))
	}
	add("acquisition.policy", c.Acquisition.Policy.Validate())
	if (c.Acquisition.FMin > 0) != (c.Acquisition.FMax > 0) {
		add("acquisition.fmin", errors.New("fmin and fmax must be set together"))
	} else if c.Acquisition.FMin > 0 && c.Acquisition.FMin >= c.Acquisition.FMax {
		add("acquisition.fmin", fmt.Errorf("must be below fmax (%g), got %g", c.Acquisition.FMax, c.Acquisition.FMin))
	}

	add("spectral", c.Spectral.Validate())

	if c.Parallel.Workers <= 0 {
		add("parallel.workers", fmt.Errorf("must be greater than 0, got %d", c.Parallel.Workers))
	}
	if c.Parallel.Chunks <= 0 && c.Parallel.ChunkDuration <= 0 {
		add("parallel.chunks", errors.New("either chunks or chunk_duration must be positive"))
	}

	if c.Decoder.Timeout < 0 || c.Decoder.HTTPTimeout < 0 {
		add("decoder.timeout", errors.New("timeouts must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err)
	}

	return errors.Join(errs...)
}

// Request builds an acquisition request for node and window using the
// acquisition defaults.
func (c *Config) Request(node string, start, end time.Time) acquire.Request {
	return acquire.Request{
		Node:   node,
		Start:  start,
		End:    end,
		Policy: c.Acquisition.Policy,
		Pad:    c.Acquisition.Pad,
		FMin:   c.Acquisition.FMin,
		FMax:   c.Acquisition.FMax,
	}
}

// AcquireOptions returns the acquirer options.
func (c *Config) AcquireOptions() acquire.Options {
	return acquire.Options{Ceiling: c.Acquisition.Ceiling}
}

// Partition returns the chunk partition for parallel analysis.
func (c *Config) Partition() parallel.Partition {
	if c.Parallel.ChunkDuration > 0 {
		return parallel.ChunksOf(c.Parallel.ChunkDuration)
	}
	return parallel.EqualChunks(c.Parallel.Chunks)
}

// NewLogger builds the configured logger. The returned closer must be called
// on exit; it is a no-op when logging to the console.
func (c *Config) NewLogger() (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	if c.Logging.File.Path == "" {
		logger := logging.NewDefaultLogger()
		logger.SetLevel(level)
		return logger, func() error { return nil }, nil
	}
	logger, closer := logging.NewFileLogger(c.Logging.File, level)
	return logger, closer, nil
}

// NewDecoder builds the segment decoder.
func (c *Config) NewDecoder(logger logging.Logger) (*transcode.ExecDecoder, error) {
	d, err := transcode.NewExecDecoder(c.Decoder, logger)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return d, nil
}
