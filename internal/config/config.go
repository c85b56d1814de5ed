// Package config loads and persists the gateway's printer configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendTCP9100 = "tcp9100"
	BackendUSB     = "usb"
)

// DefaultBaudRate is assumed when a USB backend omits baud_rate.
const DefaultBaudRate = 9600

// Backend describes how to reach a physical printer. Exactly one kind is
// active, selected by Type; the other fields are ignored.
type Backend struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Device   string `yaml:"device,omitempty" json:"device,omitempty"`
	BaudRate int    `yaml:"baud_rate,omitempty" json:"baud_rate,omitempty"`
}

// Baud returns the configured baud rate, or the default when unset.
func (b Backend) Baud() int {
	if b.BaudRate > 0 {
		return b.BaudRate
	}
	return DefaultBaudRate
}

// Printer is one configured device.
type Printer struct {
	Name    string  `yaml:"name" json:"name"`
	ID      string  `yaml:"id" json:"id"`
	Backend Backend `yaml:"backend" json:"backend"`
}

// Config is the on-disk printer list.
type Config struct {
	Printers []Printer `yaml:"printers" json:"printers"`
}

// Path returns the configuration file location, overridable via
// PRINTERS_CONFIG.
func Path() string {
	if p := os.Getenv("PRINTERS_CONFIG"); p != "" {
		return p
	}
	return "printers.yaml"
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration atomically: serialize to a temp file next to
// the target, then rename over it.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Map builds the id-keyed printer map served to the dispatch path.
func (c *Config) Map() map[string]Printer {
	m := make(map[string]Printer, len(c.Printers))
	for _, p := range c.Printers {
		m[p.ID] = p
	}
	return m
}
