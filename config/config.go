// Package mudconfig loads the optional settings this protocol stack's
// caller may want to supply up front: the output format XML renders
// text in, the GMCP client identity to announce, and the initial window
// size to negotiate.
package mudconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a caller can supply to preconfigure a session
// before the handler chain is built.
type Config struct {
	OutputFormat string       `yaml:"output_format"`
	GMCP         GMCPConfig   `yaml:"gmcp"`
	Window       WindowConfig `yaml:"window"`
}

// GMCPConfig identifies this client during the GMCP Core.Hello handshake.
type GMCPConfig struct {
	Client  string `yaml:"client"`
	Version string `yaml:"version"`
}

// WindowConfig is the initial window size announced via NAWS.
type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Load reads and parses a YAML config file, filling in defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the Config a caller gets when it supplies none.
func Default() *Config {
	return &Config{
		OutputFormat: "normal",
		GMCP:         GMCPConfig{Client: "mud-protocols", Version: "1.0"},
		Window:       WindowConfig{Width: 80, Height: 24},
	}
}
