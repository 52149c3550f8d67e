package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// ErrNoConfig is returned by ResolveConfigPath when no config file exists in
// any of the searched locations.
var ErrNoConfig = errors.New("no config file found")

type Config struct {
	Analysis Analysis `yaml:"analysis"`
	Insights Insights `yaml:"insights"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Analysis struct {
	MinSearchVolume      int     `yaml:"min_search_volume"`
	MaxKeywordDifficulty float64 `yaml:"max_keyword_difficulty"`
}

type Insights struct {
	Enabled           bool          `yaml:"enabled"`
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	OllamaURL         string        `yaml:"ollama_url"`
	OpenAIModel       string        `yaml:"openai_model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	AnthropicModel    string        `yaml:"anthropic_model"`
	AnthropicKeyEnv   string        `yaml:"anthropic_api_key_env"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type Output struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for kwgap.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kwgap")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kwgap/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"%w; searched:\n  %s\n  ./config.yaml\n\nRun 'kwgap init' to create a default config",
		ErrNoConfig, xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// LoadOrDefault resolves and loads the config, falling back to built-in
// defaults when no file exists and none was requested explicitly. The
// returned path is empty in that case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := ResolveConfigPath(explicit)
	if errors.Is(err, ErrNoConfig) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := parse(nil)
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Analysis: Analysis{
			MinSearchVolume:      100,
			MaxKeywordDifficulty: 70,
		},
		Insights: Insights{
			Provider:          "ollama",
			Model:             "qwen2.5:7b",
			OllamaURL:         "http://localhost:11434",
			OpenAIModel:       "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			AnthropicModel:    "claude-3-5-haiku-latest",
			AnthropicKeyEnv:   "ANTHROPIC_API_KEY",
			MaxTokens:         2000,
			Timeout:           120 * time.Second,
			RequestsPerMinute: 10,
		},
		Output: Output{
			Formats: []string{"xlsx", "json"},
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.MinSearchVolume < 0 {
		return fmt.Errorf("analysis.min_search_volume must be >= 0, got %d", c.Analysis.MinSearchVolume)
	}
	if c.Analysis.MaxKeywordDifficulty < 0 || c.Analysis.MaxKeywordDifficulty > 100 {
		return fmt.Errorf("analysis.max_keyword_difficulty must be within 0-100, got %v", c.Analysis.MaxKeywordDifficulty)
	}
	if c.Insights.MaxTokens <= 0 {
		return fmt.Errorf("insights.max_tokens must be positive, got %d", c.Insights.MaxTokens)
	}
	return nil
}

// GetOutputDir returns the effective output directory, defaulting to
// ./kwgap-output.
func (c *Config) GetOutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return "kwgap-output"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
