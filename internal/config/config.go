package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Values come from an optional
// YAML file, then USSD_-prefixed environment overrides, then defaults.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`
	MenuFile string `yaml:"menuFile"`
	// CleanupAPIKey guards POST /sessions/cleanup.
	CleanupAPIKey string `yaml:"cleanupApiKey"`

	App        App        `yaml:"app"`
	Redis      Redis      `yaml:"redis"`
	Security   Security   `yaml:"security"`
	Backend    Backend    `yaml:"backend"`
	Validation Validation `yaml:"validation"`
}

// App identifies this deployment on the backend wire.
type App struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Codebase string `yaml:"codebase"`
	BankID   string `yaml:"bankId"`
	Country  string `yaml:"country"`
}

// Redis holds session-store connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// SessionTTLSeconds is the sliding idle window for dialogs.
	SessionTTLSeconds int `yaml:"sessionTtlSeconds"`
}

// SessionTTL returns the TTL as a duration.
func (r Redis) SessionTTL() time.Duration {
	return time.Duration(r.SessionTTLSeconds) * time.Second
}

// Security holds PIN handling settings. PinKey/PinIV are the static
// parameters of the legacy one-way PIN wrapping; they are secrets and must
// come from the environment in production.
type Security struct {
	MaxPinAttempts int    `yaml:"maxPinAttempts"`
	PinKey         string `yaml:"pinKey"`
	PinIV          string `yaml:"pinIv"`
}

// Backend holds core-banking endpoint settings, one URL per service family.
type Backend struct {
	AuthenticateURL string `yaml:"authenticateUrl"`
	BankURL         string `yaml:"bankUrl"`
	PurchaseURL     string `yaml:"purchaseUrl"`
	ValidateURL     string `yaml:"validateUrl"`
	OtherURL        string `yaml:"otherUrl"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
}

// Timeout returns the backend call timeout (connect + response).
func (b Backend) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Validation holds the global input-validation settings.
type Validation struct {
	CountryCode    string              `yaml:"countryCode"`
	Networks       map[string][]string `yaml:"networks"`
	MinAmount      int64               `yaml:"minAmount"`
	MaxAmount      int64               `yaml:"maxAmount"`
}

// Load reads the configuration. path may be empty, in which case only env
// overrides and defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "USSD_LISTEN")
	setString(&c.LogLevel, "USSD_LOG_LEVEL")
	setString(&c.MenuFile, "USSD_MENU_FILE")
	setString(&c.CleanupAPIKey, "USSD_CLEANUP_API_KEY")

	setString(&c.App.Name, "USSD_APP_NAME")
	setString(&c.App.Version, "USSD_APP_VERSION")
	setString(&c.App.Codebase, "USSD_APP_CODEBASE")
	setString(&c.App.BankID, "USSD_BANK_ID")
	setString(&c.App.Country, "USSD_COUNTRY")

	setString(&c.Redis.Addr, "USSD_REDIS_ADDR")
	setString(&c.Redis.Password, "USSD_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "USSD_REDIS_DB")
	setInt(&c.Redis.SessionTTLSeconds, "USSD_SESSION_TTL")

	setInt(&c.Security.MaxPinAttempts, "USSD_MAX_PIN_ATTEMPTS")
	setString(&c.Security.PinKey, "USSD_PIN_KEY")
	setString(&c.Security.PinIV, "USSD_PIN_IV")

	setString(&c.Backend.AuthenticateURL, "USSD_AUTHENTICATE_URL")
	setString(&c.Backend.BankURL, "USSD_BANK_URL")
	setString(&c.Backend.PurchaseURL, "USSD_PURCHASE_URL")
	setString(&c.Backend.ValidateURL, "USSD_VALIDATE_URL")
	setString(&c.Backend.OtherURL, "USSD_OTHER_URL")
	setInt(&c.Backend.TimeoutSeconds, "USSD_BACKEND_TIMEOUT")
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MenuFile == "" {
		c.MenuFile = "configs/menus.yaml"
	}
	if c.App.Name == "" {
		c.App.Name = "EBOSACCO"
	}
	if c.App.Version == "" {
		c.App.Version = "2.0.0"
	}
	if c.App.Codebase == "" {
		c.App.Codebase = "EBOSACCOUSSD"
	}
	if c.App.Country == "" {
		c.App.Country = "UGANDA"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.SessionTTLSeconds == 0 {
		c.Redis.SessionTTLSeconds = 1800
	}
	if c.Security.MaxPinAttempts == 0 {
		c.Security.MaxPinAttempts = 3
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 30
	}
	if c.Validation.CountryCode == "" {
		c.Validation.CountryCode = "256"
	}
	if c.Validation.MinAmount == 0 {
		c.Validation.MinAmount = 100
	}
	if c.Validation.MaxAmount == 0 {
		c.Validation.MaxAmount = 5000000
	}
	if c.Validation.Networks == nil {
		c.Validation.Networks = map[string][]string{
			"mtn":    {"25631", "25639", "25678", "25677", "25676", "25679"},
			"airtel": {"25620", "25670", "25675", "25674"},
		}
	}
}

func (c *Config) validate() error {
	if c.Security.MaxPinAttempts < 1 {
		return fmt.Errorf("security.maxPinAttempts must be at least 1")
	}
	if c.Redis.SessionTTLSeconds < 1 {
		return fmt.Errorf("redis.sessionTtlSeconds must be positive")
	}
	if c.Validation.MinAmount > c.Validation.MaxAmount {
		return fmt.Errorf("validation.minAmount exceeds validation.maxAmount")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
