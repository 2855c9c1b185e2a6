package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the suite manifest file name expected at the root of
// every suite directory.
const ManifestFile = "suite.yaml"

// SuiteConfig is the immutable suite manifest. A suite directory cannot
// be loaded without one.
type SuiteConfig struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Version          string   `yaml:"version"`
	Driver           string   `yaml:"driver"`
	TestFilePatterns []string `yaml:"test-file-patterns,omitempty"`
	GlobalFixture    string   `yaml:"global-fixture,omitempty"`
	Targets          []string `yaml:"targets,omitempty"`
}

// LoadSuiteConfig reads the suite manifest from suiteDir. A missing or
// invalid manifest is fatal for the suite.
func LoadSuiteConfig(suiteDir string) (*SuiteConfig, error) {
	path := filepath.Join(suiteDir, ManifestFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite manifest %s: %w", path, err)
	}

	var cfg SuiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing suite manifest %s: %w", path, err)
	}

	if cfg.Name == "" {
		cfg.Name = filepath.Base(filepath.Clean(suiteDir))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("suite manifest %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the manifest for errors. TestFilePatterns may be empty,
// in which case the driver default applies.
func (c *SuiteConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}

	for _, pattern := range c.TestFilePatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("invalid test file pattern %q: %w", pattern, err)
		}
	}

	return nil
}
