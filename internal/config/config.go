package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the server needs to run. Values come from
// defaults, an optional exammaster.yaml, and EXAMMASTER_* environment
// variables, in increasing order of precedence.
type Config struct {
	HTTPAddr    string   `mapstructure:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	SiteID      string   `mapstructure:"site_id"`
	LogLevel    string   `mapstructure:"log_level"`  // debug|info|warn|error
	LogFormat   string   `mapstructure:"log_format"` // text|json

	StorageDriver string `mapstructure:"storage_driver"` // local|sqlite|postgres
	StorageDSN    string `mapstructure:"storage_dsn"`    // DB DSN, or data dir for local
	DataDir       string `mapstructure:"data_dir"`

	AuthSecret string        `mapstructure:"auth_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`

	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// Load reads configuration with viper. A missing config file is fine;
// anything else about it is an error.
func Load(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("site_id", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("storage_driver", "local")
	v.SetDefault("storage_dsn", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("auth_secret", "")
	v.SetDefault("access_ttl", 8*time.Hour)
	v.SetDefault("refresh_ttl", 7*24*time.Hour)
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("exammaster")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/exammaster")
	}
	v.SetEnvPrefix("EXAMMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case "local", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage_driver %q", c.StorageDriver)
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth_secret is required")
	}
	return nil
}
