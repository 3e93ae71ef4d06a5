package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Reports struct {
		OutputDir     string `mapstructure:"output_dir"`
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		Timezone      string `mapstructure:"timezone"`
	} `mapstructure:"reports"`
	Retry struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		Delay       time.Duration `mapstructure:"delay"`
		Backoff     bool          `mapstructure:"backoff"`
	} `mapstructure:"retry"`
	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`

		// Bootstrap admin created when the users table is empty.
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
	} `mapstructure:"auth"`
	Email struct {
		Enabled       bool   `mapstructure:"enabled"`
		SMTPHost      string `mapstructure:"smtp_host"`
		SMTPPort      int    `mapstructure:"smtp_port"`
		Username      string `mapstructure:"username"`
		Password      string `mapstructure:"password"`
		From          string `mapstructure:"from"`
		RatePerMinute int    `mapstructure:"rate_per_minute"`
	} `mapstructure:"email"`
	Slack struct {
		Token   string `mapstructure:"token"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"slack"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/tedecom.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("reports.output_dir", "data/reports")
	v.SetDefault("reports.max_concurrent", 4)
	v.SetDefault("reports.timezone", "Local")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", true)
	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "reports@tedecom.local")
	v.SetDefault("email.rate_per_minute", 30)
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig loads configuration from config.yaml (or the file at path when
// given), .env and TEDECOM_* environment variables. When no config file
// exists the defaults are written to ./config.yaml.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TEDECOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to write default config: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Reports.OutputDir == "" {
		return errors.New("reports.output_dir is required")
	}
	if c.Reports.MaxConcurrent < 1 {
		return errors.New("reports.max_concurrent must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	return nil
}

// Location resolves reports.timezone for schedule evaluation.
func (c *Config) Location() (*time.Location, error) {
	if c.Reports.Timezone == "" || c.Reports.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Reports.Timezone)
}
