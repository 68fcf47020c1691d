package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Gate     GateConfig     `mapstructure:"gate"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig configures the Bot API client. HTTPTimeout bounds every
// Bot API call, long polls included, so it must exceed PollingTimeout.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminIDs       []int64       `mapstructure:"admin_ids"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	NotifyAdmins   bool          `mapstructure:"notify_admins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

type GateConfig struct {
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"`
	MaxConcurrentProbes int           `mapstructure:"max_concurrent_probes"`
	BypassCommands      []string      `mapstructure:"bypass_commands"`
	AdminCacheTTL       time.Duration `mapstructure:"admin_cache_ttl"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadDatabase reads only the database section, for tools that need
// storage but not the bot token
func LoadDatabase() (DatabaseConfig, error) {
	v, err := newViper()
	if err != nil {
		return DatabaseConfig{}, err
	}

	var cfg struct {
		Database DatabaseConfig `mapstructure:"database"`
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg.Database, nil
}

func newViper() (*viper.Viper, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults. Keys without a default are invisible to Unmarshal
	// when they only come from the environment.
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "1m")
	v.SetDefault("telegram.http_timeout", "90s")
	v.SetDefault("telegram.notify_admins", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/subgate.db")
	v.SetDefault("database.url", "")
	v.SetDefault("gate.probe_timeout", "5s")
	v.SetDefault("gate.max_concurrent_probes", 4)
	v.SetDefault("gate.bypass_commands", []string{"/start", "/help"})
	v.SetDefault("gate.admin_cache_ttl", "0s")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/subgate-bot")

	// Environment variables
	v.SetEnvPrefix("SUBGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	return v, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.RequestTimeout <= 0 {
		return fmt.Errorf("telegram.request_timeout must be positive")
	}
	if c.Telegram.HTTPTimeout <= time.Duration(c.Telegram.PollingTimeout)*time.Second {
		return fmt.Errorf("telegram.http_timeout must exceed telegram.polling_timeout")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Gate.ProbeTimeout <= 0 {
		return fmt.Errorf("gate.probe_timeout must be positive")
	}
	if c.Gate.MaxConcurrentProbes < 1 {
		return fmt.Errorf("gate.max_concurrent_probes must be at least 1")
	}
	if c.Gate.AdminCacheTTL < 0 {
		return fmt.Errorf("gate.admin_cache_ttl must not be negative")
	}
	for _, cmd := range c.Gate.BypassCommands {
		if !strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("gate.bypass_commands entry %q must start with /", cmd)
		}
	}
	return nil
}

// Validate checks the database section on its own
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Driver)
	}
	return nil
}
