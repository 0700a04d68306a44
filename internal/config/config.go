package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Upstream    UpstreamConfig            `json:"upstream"`
	Auth        AuthConfig                `json:"auth"`
	RateLimit   RateLimitConfig           `json:"rate_limit"`
	Chat        ChatConfig                `json:"chat"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	Environment   string `json:"environment"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// UpstreamConfig points at the completion API the relay streams from.
type UpstreamConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AuthConfig carries the two shared-secret tiers. AdminKey may be empty,
// in which case admin routes report the capability as not configured.
type AuthConfig struct {
	ClientKey string `json:"client_key"`
	AdminKey  string `json:"admin_key"`
}

type RateLimitConfig struct {
	WindowMS    int `json:"window_ms"`
	MaxRequests int `json:"max_requests"`
}

type ChatConfig struct {
	HistoryLimit    int    `json:"history_limit"`
	MaxMessageChars int    `json:"max_message_chars"`
	MaxSessionChars int    `json:"max_session_chars"`
	SystemPrompt    string `json:"system_prompt"`
}

const (
	defaultWindowMS        = 60000
	defaultMaxRequests     = 20
	defaultHistoryLimit    = 20
	defaultMaxMessageChars = 4000
	defaultMaxSessionChars = 128
	defaultSystemPrompt    = "You are a helpful assistant answering questions on behalf of this site."
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if key := os.Getenv("CHATRELAY_UPSTREAM_API_KEY"); key != "" {
		cfg.Upstream.APIKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases["sqlite3"] = db
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return fmt.Errorf("upstream base_url must be configured")
	}
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return fmt.Errorf("upstream api_key must be configured")
	}
	if strings.TrimSpace(c.Upstream.Model) == "" {
		return fmt.Errorf("upstream model must be configured")
	}
	if strings.TrimSpace(c.Auth.ClientKey) == "" {
		return fmt.Errorf("auth client_key must be configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.RateLimit.WindowMS <= 0 {
		c.RateLimit.WindowMS = defaultWindowMS
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = defaultMaxRequests
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = defaultHistoryLimit
	}
	if c.Chat.MaxMessageChars <= 0 {
		c.Chat.MaxMessageChars = defaultMaxMessageChars
	}
	if c.Chat.MaxSessionChars <= 0 {
		c.Chat.MaxSessionChars = defaultMaxSessionChars
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = defaultSystemPrompt
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 120
	}
}

// IsDevelopment reports whether validation details may be surfaced to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.BasicConfig.Environment, "development")
}
