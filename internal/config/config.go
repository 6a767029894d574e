// Package config loads daemon configuration from defaults, the config file
// and environment overrides, in that order.
package config

import (
	"fmt"
	"time"
)

// ProviderConfig selects and parameterizes one chat backend.
type ProviderConfig struct {
	Kind    string `json:"kind"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	APIToken string `json:"api_token"`
}

type RouterConfig struct {
	Timeout string `json:"timeout"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

type PromptsConfig struct {
	SystemPromptPath  string `json:"system_prompt_path"`
	PersonaPromptPath string `json:"persona_prompt_path"`
}

type LearningConfig struct {
	ContextLimit int `json:"context_limit"`
}

type KnowledgeConfig struct {
	Enabled      bool   `json:"enabled"`
	EmbedBaseURL string `json:"embed_base_url"`
	EmbedModel   string `json:"embed_model"`
}

type SmartHomeConfig struct {
	BaseURL string `json:"base_url"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Router    RouterConfig    `json:"router"`
	Primary   ProviderConfig  `json:"primary"`
	Fallback  ProviderConfig  `json:"fallback"`
	Storage   StorageConfig   `json:"storage"`
	Prompts   PromptsConfig   `json:"prompts"`
	Learning  LearningConfig  `json:"learning"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	SmartHome SmartHomeConfig `json:"smarthome"`
	Log       LogConfig       `json:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8010},
		Router: RouterConfig{Timeout: "30s"},
		Primary: ProviderConfig{
			Kind:    "openai",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4.1-mini",
		},
		Fallback: ProviderConfig{
			Kind:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Learning: LearningConfig{ContextLimit: 5},
		Knowledge: KnowledgeConfig{
			EmbedBaseURL: "http://localhost:11434",
			EmbedModel:   "nomic-embed-text",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the effective configuration: defaults, then the config file,
// then environment variables. A missing config file is not an error.
func Load() (Config, error) {
	cfg := Defaults()

	backend, err := openFileBackend()
	if err != nil {
		return Config{}, fmt.Errorf("open config backend: %w", err)
	}
	if backend != nil {
		applyBackend(&cfg, backend)
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Router.Timeout); err != nil {
		return fmt.Errorf("invalid router timeout %q: %w", c.Router.Timeout, err)
	}
	for _, p := range []ProviderConfig{c.Primary, c.Fallback} {
		if p.Kind != "openai" && p.Kind != "ollama" {
			return fmt.Errorf("unknown provider kind %q", p.Kind)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %s has no model configured", p.Kind)
		}
	}
	return nil
}

// RouterTimeout parses the configured timeout. Call after validate.
func (c *Config) RouterTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Router.Timeout)
	return d
}
