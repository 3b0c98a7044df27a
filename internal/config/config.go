package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for leasebot.
type Config struct {
	General   GeneralConfig             `yaml:"general"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Channels  ChannelsConfig            `yaml:"channels"`
	Knowledge KnowledgeConfig           `yaml:"knowledge"`
	Tickets   TicketsConfig             `yaml:"tickets"`
	RateLimit RateLimitConfig           `yaml:"rateLimit"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

type GeneralConfig struct {
	DataDir         string   `yaml:"dataDir"`
	LogLevel        string   `yaml:"logLevel"`
	DefaultProvider string   `yaml:"defaultProvider"`
	FailoverChain   []string `yaml:"failoverChain,omitempty"` // provider fallback order
	Concurrency     int      `yaml:"concurrency"`             // max parallel inbound messages
	ListenAddr      string   `yaml:"listenAddr"`
}

type ProviderConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIBase      string `yaml:"apiBase,omitempty"`
	APIKey       string `yaml:"apiKey,omitempty"`
	DefaultModel string `yaml:"defaultModel,omitempty"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Telegram TelegramConfig `yaml:"telegram"`
	CLI      CLIConfig      `yaml:"cli"`
	// SegmentLimit is the transport chunk size for outbound replies. It is
	// kept below the WhatsApp hard cap so the "Part i/N" header fits.
	SegmentLimit int `yaml:"segmentLimit"`
}

type WhatsAppConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AppSecret     string `yaml:"appSecret,omitempty"`
	AccessToken   string `yaml:"accessToken,omitempty"`
	VerifyToken   string `yaml:"verifyToken,omitempty"`
	PhoneNumberID string `yaml:"phoneNumberId,omitempty"`
	WebhookPath   string `yaml:"webhookPath,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
}

type CLIConfig struct {
	Enabled bool `yaml:"enabled"`
}

type KnowledgeConfig struct {
	TopK      int `yaml:"topK"`      // retrieval depth (default 3)
	ChunkSize int `yaml:"chunkSize"` // words per chunk
	Overlap   int `yaml:"overlap"`   // overlapping words between chunks
}

type TicketsConfig struct {
	ImagesDir string `yaml:"imagesDir"`
}

type RateLimitConfig struct {
	MaxRequests   int `yaml:"maxRequests"`   // per sender per window
	WindowMinutes int `yaml:"windowMinutes"` // window length
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfigDir returns ~/.leasebot.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leasebot"
	}
	return filepath.Join(home, ".leasebot")
}

// DefaultConfigPath returns ~/.leasebot/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.General.DataDir, "leasebot.db")
}

// Load reads a YAML config file, expanding ${ENV_VAR} references from the
// process environment (a .env file beside the process is loaded first, if
// present). Missing fields fall back to defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyFallbacks()
	return cfg, nil
}

// Save writes the config as YAML.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// applyFallbacks fills zero values that yaml.Unmarshal may have cleared.
func (c *Config) applyFallbacks() {
	d := Defaults()
	if c.General.DataDir == "" {
		c.General.DataDir = d.General.DataDir
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = d.General.LogLevel
	}
	if c.General.DefaultProvider == "" {
		c.General.DefaultProvider = d.General.DefaultProvider
	}
	if c.General.Concurrency <= 0 {
		c.General.Concurrency = d.General.Concurrency
	}
	if c.General.ListenAddr == "" {
		c.General.ListenAddr = d.General.ListenAddr
	}
	if c.Channels.SegmentLimit <= 0 {
		c.Channels.SegmentLimit = d.Channels.SegmentLimit
	}
	if c.Knowledge.TopK <= 0 {
		c.Knowledge.TopK = d.Knowledge.TopK
	}
	if c.Knowledge.ChunkSize <= 0 {
		c.Knowledge.ChunkSize = d.Knowledge.ChunkSize
	}
	if c.Knowledge.Overlap <= 0 {
		c.Knowledge.Overlap = d.Knowledge.Overlap
	}
	if c.Tickets.ImagesDir == "" {
		c.Tickets.ImagesDir = filepath.Join(c.General.DataDir, "tickets", "images")
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = d.RateLimit.MaxRequests
	}
	if c.RateLimit.WindowMinutes <= 0 {
		c.RateLimit.WindowMinutes = d.RateLimit.WindowMinutes
	}
}
