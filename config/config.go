// Package config provides a reusable loader for aspike client configuration
// files and environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the unified configuration for an aspike client process: cluster
// seeds, pool limits, timeouts and logging, loaded from YAML plus
// environment overrides.
type Config struct {
	Cluster struct {
		Seeds           []string `mapstructure:"seeds" json:"seeds"`
		TendIntervalMS  int      `mapstructure:"tend_interval_ms" json:"tend_interval_ms"`
		InfoTimeoutMS   int      `mapstructure:"info_timeout_ms" json:"info_timeout_ms"`
		AbsentThreshold int32    `mapstructure:"absent_threshold" json:"absent_threshold"`
	} `mapstructure:"cluster" json:"cluster"`

	Pool struct {
		MinConnections   int `mapstructure:"min_connections" json:"min_connections"`
		MaxConnections   int `mapstructure:"max_connections" json:"max_connections"`
		MaxSocketIdleMS  int `mapstructure:"max_socket_idle_ms" json:"max_socket_idle_ms"`
		TotalTimeoutMS   int `mapstructure:"total_timeout_ms" json:"total_timeout_ms"`
	} `mapstructure:"pool" json:"pool"`

	TLS struct {
		Enabled      bool   `mapstructure:"enabled" json:"enabled"`
		LoginOnly    bool   `mapstructure:"login_only" json:"login_only"`
		CACertFile   string `mapstructure:"ca_cert_file" json:"ca_cert_file"`
	} `mapstructure:"tls" json:"tls"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the default configuration file and merges an env-specific
// override file on top, then applies environment variable overrides. The
// result is stored in AppConfig and returned.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("ASPIKE")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ASPIKE_ENV environment
// variable to select the override file, defaulting to no override.
func LoadFromEnv() (*Config, error) {
	return Load(envOrDefault("ASPIKE_ENV", ""))
}

// Dump renders the configuration as YAML, for seeding an initial config
// file or logging the effective settings at startup.
func (c *Config) Dump() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, wrap(err, "render config")
	}
	return b, nil
}

// Save writes the configuration to path in YAML form.
func (c *Config) Save(path string) error {
	b, err := c.Dump()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func wrap(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}
