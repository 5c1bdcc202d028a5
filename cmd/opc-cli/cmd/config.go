package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig controls file logging. The TUI owns stdout, so logs always go to
// a rotated file.
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config is the CLI configuration, loadable from YAML and overridable by
// flags.
type Config struct {
	// Backend selects the transport: "dcom" or "sim".
	Backend string `yaml:"backend"`

	// Host targets a remote machine for the dcom backend; empty means local.
	Host string `yaml:"host"`

	// DAVersion selects the served OPC DA generation: "1.0", "2.0" or "3.0".
	DAVersion string `yaml:"da_version"`

	ListTimeout   time.Duration `yaml:"list_timeout"`
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`

	MaxTags  int `yaml:"max_tags"`
	MaxDepth int `yaml:"max_depth"`

	Log LogConfig `yaml:"log"`
}

// DefaultCLIConfig returns the configuration used when no file or flags
// override it.
func DefaultCLIConfig() *Config {
	return &Config{
		Backend:       "dcom",
		DAVersion:     "2.0",
		ListTimeout:   300 * time.Second,
		BrowseTimeout: 300 * time.Second,
		ReadTimeout:   300 * time.Second,
		WriteTimeout:  10 * time.Second,
		MaxTags:       10000,
		MaxDepth:      50,
		Log: LogConfig{
			File:       "opc-cli.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing path is
// not an error; the defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultCLIConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
