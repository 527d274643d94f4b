package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the Control Plane service
type ServerConfig struct {
	DatabaseURL     string        `json:"database_url" yaml:"database_url"`
	Port            string        `json:"port" yaml:"port"`
	CatalogURL      string        `json:"catalog_url" yaml:"catalog_url"`
	CatalogCacheTTL Duration      `json:"catalog_cache_ttl" yaml:"catalog_cache_ttl"`
	Redis           RedisConfig   `json:"redis" yaml:"redis"`
	Paywall         PaywallConfig `json:"paywall" yaml:"paywall"`
	Session         SessionConfig `json:"session" yaml:"session"`
	OIDC            OIDCConfig    `json:"oidc" yaml:"oidc"`
	LogLevel        string        `json:"log_level" yaml:"log_level"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type PaywallConfig struct {
	ThresholdSeconds float64  `json:"threshold_seconds" yaml:"threshold_seconds"`
	CheckTimeout     Duration `json:"check_timeout" yaml:"check_timeout"`
}

type SessionConfig struct {
	IdleTimeout  Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ReapInterval Duration `json:"reap_interval" yaml:"reap_interval"`
}

type OIDCConfig struct {
	ProviderURL string `json:"provider_url" yaml:"provider_url"`
	ClientID    string `json:"client_id" yaml:"client_id"`
}

// Duration is a time.Duration written as "10s", "2m" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load loads the configuration from a file (YAML or JSON)
func Load(path string, cfg interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config file %s: %w", path, err)
		}
	} else {
		// Default to JSON for compatibility or other extensions
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config file %s: %w", path, err)
		}
	}

	return nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func (c *ServerConfig) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("DATABASE_URL", &c.DatabaseURL)
	setString("PORT", &c.Port)
	setString("CATALOG_URL", &c.CatalogURL)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("OIDC_PROVIDER", &c.OIDC.ProviderURL)
	setString("OIDC_CLIENT_ID", &c.OIDC.ClientID)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("PAYWALL_THRESHOLD_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PAYWALL_THRESHOLD_SECONDS %q: %w", v, err)
		}
		c.Paywall.ThresholdSeconds = secs
	}
	return nil
}

// Defaults fills unset fields.
func (c *ServerConfig) Defaults() {
	if c.Port == "" {
		c.Port = "8096"
	}
	if c.CatalogCacheTTL <= 0 {
		c.CatalogCacheTTL = Duration(5 * time.Minute)
	}
	if c.Paywall.ThresholdSeconds <= 0 {
		c.Paywall.ThresholdSeconds = 45
	}
	if c.Paywall.CheckTimeout <= 0 {
		c.Paywall.CheckTimeout = Duration(10 * time.Second)
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = Duration(2 * time.Minute)
	}
	if c.Session.ReapInterval <= 0 {
		c.Session.ReapInterval = Duration(15 * time.Second)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
