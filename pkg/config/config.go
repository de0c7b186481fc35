// Package config loads and validates Scout runner configuration from a
// YAML file, with sane defaults for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Supported browser engines.
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebkit   = "webkit"
)

// Supported LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the top-level runner configuration.
type Config struct {
	// Browser controls session defaults
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// LLM configures the selector/plan inference endpoint
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Database configures the persistence layer
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Artifacts controls where screenshots and recordings are written
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
}

// BrowserConfig defines browser session defaults.
type BrowserConfig struct {
	// Engine is the default browser engine: chromium, firefox, or webkit
	Engine string `yaml:"engine" json:"engine"`

	// Headless controls whether sessions run without a visible window
	Headless bool `yaml:"headless" json:"headless"`

	// NavigationTimeoutMs bounds page navigation (default: 30000)
	NavigationTimeoutMs float64 `yaml:"navigation_timeout_ms" json:"navigation_timeout_ms"`
}

// LLMConfig defines inference endpoint configuration.
type LLMConfig struct {
	// Provider selects the chat client: ollama (default) or openai
	Provider string `yaml:"provider" json:"provider"`

	// BaseURL is the endpoint root, e.g. http://localhost:11434
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Model is the model name passed on every request
	Model string `yaml:"model" json:"model"`

	// APIKey authenticates openai-compatible providers (unused by ollama)
	APIKey string `yaml:"api_key" json:"api_key"`

	// Temperature for inference calls (default: 0.2)
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// MaxPromptTokens bounds the context payload sent with inference
	// requests (default: 4096)
	MaxPromptTokens int `yaml:"max_prompt_tokens" json:"max_prompt_tokens"`
}

// DatabaseConfig defines the persistence connection.
type DatabaseConfig struct {
	// URL is a postgres connection string
	URL string `yaml:"url" json:"url"`
}

// ArtifactConfig defines artifact output configuration.
type ArtifactConfig struct {
	// Dir is the root directory for run-scoped artifact directories.
	// Each run writes screenshots and its recording under <dir>/<run-id>/
	Dir string `yaml:"dir" json:"dir"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Engine == "" {
		c.Browser.Engine = EngineChromium
	}
	if c.Browser.NavigationTimeoutMs == 0 {
		c.Browser.NavigationTimeoutMs = 30000
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOllama
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.MaxPromptTokens == 0 {
		c.LLM.MaxPromptTokens = 4096
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = filepath.Join(os.TempDir(), "scout-artifacts")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case EngineChromium, EngineFirefox, EngineWebkit:
	default:
		return fmt.Errorf("invalid browser engine: %s (must be 'chromium', 'firefox', or 'webkit')", c.Browser.Engine)
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid llm provider: %s (must be 'ollama' or 'openai')", c.LLM.Provider)
	}

	if c.Browser.NavigationTimeoutMs < 0 {
		return fmt.Errorf("navigation_timeout_ms cannot be negative")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.LLM.MaxPromptTokens < 0 {
		return fmt.Errorf("max_prompt_tokens cannot be negative")
	}

	return nil
}
