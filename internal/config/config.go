// Package config provides configuration types for the downloader.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Common errors.
var (
	ErrMissingURL = errors.New("URL is required")
	ErrMissingDir = errors.New("output directory is required")
)

// Config holds all application configuration.
type Config struct {
	// Input
	URL string `yaml:"url"`

	// Output
	FileName  string `yaml:"fileName"`
	OutputDir string `yaml:"outputDir"`
	TempDir   string `yaml:"tempDir"` // shared with the merge helper

	// Download settings
	MaxBandwidth int64 `yaml:"maxBandwidth"` // bytes per second, 0 = unlimited

	// HTTP settings
	Headers map[string]string `yaml:"headers"`

	// Merge helper
	MergeCommand string   `yaml:"mergeCommand"`
	MergeArgs    []string `yaml:"mergeArgs"`

	// UI/Logging
	NoProgress  bool `yaml:"noProgress"`
	Verbose     bool `yaml:"verbose"`
	ShowVersion bool `yaml:"-"`
}

// Default configuration values.
const (
	DefaultOutputDir = "downloads"
	DefaultTempDir   = "downloads/.tmp"
)

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		TempDir:   DefaultTempDir,
		Headers:   make(map[string]string),
	}
}

// LoadFile overlays settings from a YAML file onto the config. A missing file
// is not an error; unknown keys are.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("unmarshaling config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid and normalizes values.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.OutputDir == "" {
		return ErrMissingDir
	}
	if c.TempDir == "" {
		c.TempDir = c.OutputDir
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	return nil
}
