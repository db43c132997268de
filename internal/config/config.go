// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is OpenRouter's OpenAI-compatible API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultProxyAddr is where `polychat serve` listens
	DefaultProxyAddr = ":8788"
)

type ModelConfig struct {
	ID   string `yaml:"id" toml:"id"`
	Name string `yaml:"name" toml:"name"`
}

type FAQConfig struct {
	Question string `yaml:"question" toml:"question"`
	Answer   string `yaml:"answer" toml:"answer"`
}

type Config struct {
	Upstream struct {
		BaseURL string `yaml:"base_url" toml:"base_url"`
		APIKey  string `yaml:"api_key,omitempty" toml:"api_key"`
		Referer string `yaml:"referer,omitempty" toml:"referer"`
		Title   string `yaml:"title,omitempty" toml:"title"`
	} `yaml:"upstream" toml:"upstream"`
	Models   []ModelConfig `yaml:"models" toml:"models"`
	Defaults struct {
		ModelTimeout int `yaml:"model_timeout" toml:"model_timeout"` // seconds
	} `yaml:"defaults" toml:"defaults"`
	Focus struct {
		DropFailedTurns bool `yaml:"drop_failed_turns" toml:"drop_failed_turns"`
	} `yaml:"focus" toml:"focus"`
	Proxy struct {
		Addr string `yaml:"addr" toml:"addr"`
	} `yaml:"proxy" toml:"proxy"`
	Events struct {
		Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint"`
	} `yaml:"events" toml:"events"`
	Stats struct {
		// nil means enabled
		Enabled *bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"stats" toml:"stats"`
	Export struct {
		Dir string `yaml:"dir,omitempty" toml:"dir"`
	} `yaml:"export" toml:"export"`
	FAQ []FAQConfig `yaml:"faq" toml:"faq"`
}

// Load reads the config from its default location. A missing file yields
// the defaults.
func Load() (*Config, error) {
	cfg, err := LoadFile(ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads the config at path. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func LoadFile(path string) (*Config, error) {
	// .env is optional; it only feeds the environment expansion below
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultBaseURL
	}
	if cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.Upstream.Title == "" {
		cfg.Upstream.Title = "polychat"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.Defaults.ModelTimeout == 0 {
		cfg.Defaults.ModelTimeout = 60
	}
	if cfg.Proxy.Addr == "" {
		cfg.Proxy.Addr = DefaultProxyAddr
	}
	if len(cfg.FAQ) == 0 {
		cfg.FAQ = DefaultFAQ()
	}
}

// StatsEnabled reports whether request outcomes should be recorded
func (c *Config) StatsEnabled() bool {
	return c.Stats.Enabled == nil || *c.Stats.Enabled
}

// DefaultModels is the catalog shown when the config names none.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{ID: "deepseek/deepseek-chat-v3-0324", Name: "DeepSeek Coder"},
		{ID: "qwen/qwen3-14b", Name: "Qwen3"},
		{ID: "openai/gpt-3.5-turbo", Name: "GPT-3.5 Turbo"},
		{ID: "mistralai/mistral-7b-instruct", Name: "Mistral 7B"},
		{ID: "openai/gpt-oss-20b", Name: "openai(gpt-oss)"},
		{ID: "meta-llama/llama-3.3-70b-instruct", Name: "llama-3.3"},
	}
}

func DefaultFAQ() []FAQConfig {
	return []FAQConfig{
		{
			Question: "What does polychat do?",
			Answer:   "It sends one prompt to several models at once so you can compare their answers side by side.",
		},
		{
			Question: "How do I keep talking to one model?",
			Answer:   "Pick a response card and continue with it. The conversation is then focused on that model and keeps its history.",
		},
		{
			Question: "Where is my API key stored?",
			Answer:   "Only in your config, environment or .env file. Point upstream.base_url at `polychat serve` to keep it on a server.",
		},
		{
			Question: "Are conversations saved?",
			Answer:   "No. Only request statistics are recorded. Use /export to write the current transcript to a Markdown file.",
		},
	}
}

// Redacted returns the API key masked for log output.
func (c *Config) Redacted() string {
	key := c.Upstream.APIKey
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func ConfigPath() string {
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "polychat", "config.yaml")
}
