// Package config handles retitled configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/retitle/internal/rewrite"
)

// Config is the top-level retitled configuration.
type Config struct {
	Browser    BrowserConfig          `yaml:"browser"`
	Page       PageConfig             `yaml:"page"`
	Channel    rewrite.ChannelProfile `yaml:"channel"`
	Classifier ClassifierConfig       `yaml:"classifier"`
	Scan       ScanConfig             `yaml:"scan"`
	Patterns   rewrite.Patterns       `yaml:"patterns"`
	Titles     TitlesConfig           `yaml:"titles"`
	Control    ControlConfig          `yaml:"control"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty =
	// launch a local one.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// PageConfig defines the page to observe.
type PageConfig struct {
	URL string `yaml:"url"`
}

// ClassifierConfig controls how fragments are attributed to the
// tracked channel.
type ClassifierConfig struct {
	// PageShortcut treats every fragment on the channel's own pages as
	// belonging to it, skipping per-fragment attribution.
	PageShortcut *bool `yaml:"page_shortcut"`
	// GateLookup requires a positive channel signal before the title
	// mapping is consulted. Off by default: unmapped ids are inert
	// either way, and the permalink id is the stronger key.
	GateLookup bool `yaml:"gate_lookup"`
}

// ScanConfig controls rescan coalescing.
type ScanConfig struct {
	MutationDebounce time.Duration `yaml:"mutation_debounce"`
	NavigationSettle time.Duration `yaml:"navigation_settle"`
	ScrollDebounce   time.Duration `yaml:"scroll_debounce"`
	RequireVisible   bool          `yaml:"require_visible"`
}

// TitlesConfig controls the title store and remote feed.
type TitlesConfig struct {
	DBPath          string        `yaml:"db_path"`
	FeedURL         string        `yaml:"feed_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ControlConfig controls the local HTTP control surface.
type ControlConfig struct {
	Listen string `yaml:"listen"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with working values.
func (c *Config) ApplyDefaults() {
	if c.Page.URL == "" {
		c.Page.URL = "https://www.youtube.com/"
	}
	if c.Channel.Handle == "" && c.Channel.ID == "" {
		c.Channel = rewrite.DefaultChannel()
	}
	if c.Classifier.PageShortcut == nil {
		on := true
		c.Classifier.PageShortcut = &on
	}
	if c.Scan.MutationDebounce <= 0 {
		c.Scan.MutationDebounce = 100 * time.Millisecond
	}
	if c.Scan.NavigationSettle <= 0 {
		c.Scan.NavigationSettle = 500 * time.Millisecond
	}
	if c.Scan.ScrollDebounce <= 0 {
		c.Scan.ScrollDebounce = 200 * time.Millisecond
	}
	if c.Titles.DBPath == "" {
		c.Titles.DBPath = "retitle.db"
	}
	if c.Titles.RefreshInterval <= 0 {
		c.Titles.RefreshInterval = 15 * time.Minute
	}
	if c.Control.Listen == "" {
		c.Control.Listen = "127.0.0.1:8724"
	}
}
