package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool          `yaml:"send"`
	APIKey        string        `yaml:"api_key"`
	OrgID         string        `yaml:"org_id"`
	Dataset       string        `yaml:"dataset"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ProviderConfig is the credential, endpoint and model of one engine.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AIConfig selects the engine and carries per-engine settings.
type AIConfig struct {
	Engine         string         `yaml:"engine"` // "groq"|"openai"|"anthropic"
	Groq           ProviderConfig `yaml:"groq"`
	OpenAI         ProviderConfig `yaml:"openai"`
	Anthropic      ProviderConfig `yaml:"anthropic"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	JPEGQuality    int            `yaml:"jpeg_quality"`
	MaxPixels      int            `yaml:"max_pixels"`
}

// WebConfig defines the HTTP shell.
type WebConfig struct {
	Port        string `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Axiom   AxiomConfig   `yaml:"axiom"`
	AI      AIConfig      `yaml:"ai"`
	Web     WebConfig     `yaml:"web"`
}

// Active returns the provider settings of the selected engine.
func (c AIConfig) Active() ProviderConfig {
	switch strings.ToLower(c.Engine) {
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	default:
		return c.Groq
	}
}

// Load reads a .env file if present (existing variables win), then builds
// the configuration with FromEnv.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds configuration from defaults, then the YAML file named by
// DOCOCR_CONFIG (if set), then environment variables.
func FromEnv() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DOCOCR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	l := &cfg.Logging
	l.Level = getEnv("LOG_LEVEL", l.Level)
	l.Pretty = parseBool(getEnv("LOG_PRETTY", strconv.FormatBool(l.Pretty)))
	l.File = getEnv("LOG_FILE", l.File)
	l.MaxSizeMB = parseInt(getEnv("LOG_MAX_SIZE_MB", ""), l.MaxSizeMB)
	l.MaxBackups = parseInt(getEnv("LOG_MAX_BACKUPS", ""), l.MaxBackups)
	l.MaxAgeDays = parseInt(getEnv("LOG_MAX_AGE_DAYS", ""), l.MaxAgeDays)
	l.Compress = parseBool(getEnv("LOG_COMPRESS", strconv.FormatBool(l.Compress)))

	a := &cfg.Axiom
	a.Send = parseBool(getEnv("SEND_LOGS_TO_AXIOM", strconv.FormatBool(a.Send)))
	a.APIKey = getEnv("AXIOM_API_KEY", a.APIKey)
	a.OrgID = getEnv("AXIOM_ORG_ID", a.OrgID)
	if ds := os.Getenv("AXIOM_DATASET"); ds != "" {
		a.Dataset = ds + "_dococr"
	}
	a.FlushInterval = parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", ""), a.FlushInterval)

	p := &cfg.AI
	p.Engine = strings.ToLower(getEnv("AI_ENGINE", p.Engine))
	p.Groq.APIKey = getEnv("GROQ_API_KEY", p.Groq.APIKey)
	p.Groq.BaseURL = getEnv("GROQ_BASE_URL", p.Groq.BaseURL)
	p.Groq.Model = getEnv("GROQ_MODEL", p.Groq.Model)
	p.OpenAI.APIKey = getEnv("OPENAI_API_KEY", p.OpenAI.APIKey)
	p.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", p.OpenAI.BaseURL)
	p.OpenAI.Model = getEnv("OPENAI_MODEL", p.OpenAI.Model)
	p.Anthropic.APIKey = getEnv("ANTHROPIC_API_KEY", p.Anthropic.APIKey)
	p.Anthropic.BaseURL = getEnv("ANTHROPIC_BASE_URL", p.Anthropic.BaseURL)
	p.Anthropic.Model = getEnv("ANTHROPIC_MODEL", p.Anthropic.Model)
	p.RequestTimeout = parseDuration(getEnv("REQUEST_TIMEOUT", ""), p.RequestTimeout)
	p.JPEGQuality = parseInt(getEnv("JPEG_QUALITY", ""), p.JPEGQuality)
	p.MaxPixels = parseInt(getEnv("MAX_IMAGE_PIXELS", ""), p.MaxPixels)
	if p.MaxPixels <= 0 {
		p.MaxPixels = 89_478_485
	}

	w := &cfg.Web
	w.Port = getEnv("PORT", w.Port)
	w.MaxUploadMB = parseInt(getEnv("MAX_UPLOAD_MB", ""), w.MaxUploadMB)
	if w.MaxUploadMB <= 0 {
		w.MaxUploadMB = 20
	}

	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			Pretty:     parseBool(devDefaultPretty()),
			File:       "logs/dococr.log",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Axiom: AxiomConfig{
			Dataset:       "dev_dococr",
			FlushInterval: 10 * time.Second,
		},
		AI: AIConfig{
			Engine: "groq",
			Groq:   ProviderConfig{Model: "llama-3.2-11b-vision-preview"},
			OpenAI: ProviderConfig{Model: "gpt-4o-mini"},
			Anthropic: ProviderConfig{
				Model: "claude-3-5-sonnet-latest",
			},
			RequestTimeout: 120 * time.Second,
			JPEGQuality:    75,
			MaxPixels:      89_478_485,
		},
		Web: WebConfig{
			Port:        "8080",
			MaxUploadMB: 20,
		},
	}
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if s == "0" {
		return 0
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
