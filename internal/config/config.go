package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = "nexus.yml"

// Config models nexus.yml.
type Config struct {
	// Operators are identities cleared for Zoe/Admin self-registration and
	// granted Zoe at bootstrap.
	Operators []string `yaml:"operators"`
	Activity  struct {
		WindowDays int `yaml:"window_days"`
	} `yaml:"activity"`
	Channels []string        `yaml:"channels"`
	NATS     NATSConfig      `yaml:"nats"`
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
	DevLogin  bool   `yaml:"dev_login"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with nexus init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the default config when the file does not exist.
func LoadOrDefault(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	seen := map[string]struct{}{}
	for _, op := range c.Operators {
		if strings.TrimSpace(op) == "" {
			return fmt.Errorf("config.operators contains an empty identity")
		}
		if _, dup := seen[op]; dup {
			return fmt.Errorf("config.operators lists %s twice", op)
		}
		seen[op] = struct{}{}
	}
	if c.Activity.WindowDays < 0 {
		return fmt.Errorf("config.activity.window_days must be positive")
	}
	for _, ch := range c.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("config.channels contains an empty name")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format %q is not one of text, json", c.Log.Format)
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be positive", i)
		}
	}
	return nil
}

// WindowDays returns the configured activity window seed, defaulting to 7.
func (c *Config) WindowDays() int {
	if c == nil || c.Activity.WindowDays <= 0 {
		return 7
	}
	return c.Activity.WindowDays
}

// SlogLevel maps log.level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML with the given operator.
func GenerateDefault(operator string) string {
	if operator == "" {
		operator = "local-operator"
	}
	return fmt.Sprintf(defaultTemplate, operator)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault("")), &cfg)
	cfg.Operators = nil
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `operators:
  - %s

activity:
  window_days: 7

channels: []

nats:
  url: ""

server:
  addr: 127.0.0.1:8080
  jwt_secret: ""
  dev_login: false

log:
  level: info
  format: text

webhooks: []
`
