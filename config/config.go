// Package config provides configuration loading and management for paperdraft.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete paperdraft configuration
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Format FormatConfig `yaml:"format"`
	Chat   ChatConfig   `yaml:"chat"`
	Store  StoreConfig  `yaml:"store"`
	NATS   NATSConfig   `yaml:"nats"`
}

// ModelConfig configures the text-generation backend
type ModelConfig struct {
	// Provider is the backend provider name (default: "ollama")
	Provider string `yaml:"provider"`
	// Endpoint is the backend API endpoint (default: http://localhost:11434)
	Endpoint string `yaml:"endpoint"`
	// Format is the model used for section formatting
	Format string `yaml:"format"`
	// Chat is the model used for assistant turns
	Chat string `yaml:"chat"`
	// Timeout bounds a single completion round trip
	Timeout time.Duration `yaml:"timeout"`
}

// FormatConfig configures the section formatter
type FormatConfig struct {
	// Debounce is the quiet window after the last edit before a
	// formatting cycle starts
	Debounce time.Duration `yaml:"debounce"`
	// CitationContext enables fetching URL citations for prompt context
	CitationContext bool `yaml:"citation_context"`
	// SnippetRunes bounds each cited source's prompt contribution
	SnippetRunes int `yaml:"snippet_runes"`
}

// ChatConfig configures the conversation engine
type ChatConfig struct {
	// TokenBudget caps the approximate token size of history payloads
	// (0 = unlimited)
	TokenBudget int `yaml:"token_budget"`
}

// StoreConfig configures the draft record store
type StoreConfig struct {
	// URL is the PostgREST-compatible endpoint (empty = persistence disabled)
	URL string `yaml:"url"`
	// APIKey authenticates against the record store
	APIKey string `yaml:"api_key"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: "ollama",
			Endpoint: "http://localhost:11434",
			Format:   "phi3",
			Chat:     "phi3",
			Timeout:  2 * time.Minute,
		},
		Format: FormatConfig{
			Debounce:        2 * time.Second,
			CitationContext: false,
			SnippetRunes:    1200,
		},
		Chat: ChatConfig{
			TokenBudget: 8192,
		},
		Store: StoreConfig{},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Endpoint == "" {
		return fmt.Errorf("model.endpoint is required")
	}
	if c.Model.Format == "" {
		return fmt.Errorf("model.format is required")
	}
	if c.Model.Chat == "" {
		return fmt.Errorf("model.chat is required")
	}
	if c.Format.Debounce <= 0 {
		return fmt.Errorf("format.debounce must be positive")
	}
	if c.Store.URL != "" && c.Store.APIKey == "" {
		return fmt.Errorf("store.api_key is required when store.url is set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Format != "" {
		c.Model.Format = other.Model.Format
	}
	if other.Model.Chat != "" {
		c.Model.Chat = other.Model.Chat
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Format
	if other.Format.Debounce != 0 {
		c.Format.Debounce = other.Format.Debounce
	}
	if other.Format.CitationContext {
		c.Format.CitationContext = true
	}
	if other.Format.SnippetRunes != 0 {
		c.Format.SnippetRunes = other.Format.SnippetRunes
	}

	// Chat
	if other.Chat.TokenBudget != 0 {
		c.Chat.TokenBudget = other.Chat.TokenBudget
	}

	// Store
	if other.Store.URL != "" {
		c.Store.URL = other.Store.URL
	}
	if other.Store.APIKey != "" {
		c.Store.APIKey = other.Store.APIKey
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
}
