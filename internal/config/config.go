// Package config provides configuration management for mist using Viper
// for loading from files, environment variables and command-line flags.
//
// Configuration is read from .mist.yml (or the file named by --config or
// MIST_CONFIG_FILE) and can be overridden with MIST_ prefixed environment
// variables such as MIST_SERVER_PORT. It covers the preview server, the
// mounted application, the state-file watcher and logging.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/logging"
	"github.com/conneroisu/mist/internal/validation"
	"github.com/conneroisu/mist/pkg/reactive"
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	App    AppConfig    `mapstructure:"app" yaml:"app" json:"app"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is the inbound websocket messages per second allowed per
	// client, with bursts up to RateBurst. Zero disables the limit.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
}

type AppConfig struct {
	// Target is the mount selector inside the page shell.
	Target    string   `mapstructure:"target" yaml:"target" json:"target"`
	StateFile string   `mapstructure:"state_file" yaml:"state_file" json:"state_file"`
	KeyedTags []string `mapstructure:"keyed_tags" yaml:"keyed_tags" json:"keyed_tags"`
	KeyProp   string   `mapstructure:"key_prop" yaml:"key_prop" json:"key_prop"`
	// Policy is the store subscription policy: accumulate or resubscribe.
	Policy  string `mapstructure:"policy" yaml:"policy" json:"policy"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// EnvPrefix prefixes environment overrides, as in MIST_SERVER_PORT.
const EnvPrefix = "MIST"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv enables MIST_ prefixed environment overrides on the global viper.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(envKeyReplacer)
}

// SetDefaults registers the default values with viper. Registering every
// key also lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("server.rate_limit", 20.0)
	viper.SetDefault("server.rate_burst", 40)
	viper.SetDefault("app.target", "#app")
	viper.SetDefault("app.state_file", "")
	viper.SetDefault("app.keyed_tags", []string{"ul"})
	viper.SetDefault("app.key_prop", "id")
	viper.SetDefault("app.policy", reactive.Accumulate.String())
	viper.SetDefault("app.base_url", "")
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 300*time.Millisecond)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}

	// Handle slices set via environment variables (viper keeps them as a
	// single space separated string)
	if viper.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = viper.GetStringSlice("server.allowed_origins")
	}
	if viper.IsSet("app.keyed_tags") && len(config.App.KeyedTags) == 0 {
		config.App.KeyedTags = viper.GetStringSlice("app.keyed_tags")
	}

	if config.App.BaseURL == "" {
		config.App.BaseURL = "http://" + config.Addr()
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration: %v", err))
	}

	return &config, nil
}

// Policy returns the parsed subscription policy.
func (c *Config) Policy() reactive.Policy {
	p, _ := reactive.ParsePolicy(c.App.Policy)
	return p
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}

// Addr returns host:port for the preview server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateAppConfig(&config.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}
	if config.Watch.Enabled && config.App.StateFile == "" {
		return fmt.Errorf("watch config: watching needs app.state_file")
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if err := validation.ValidateHost(config.Host); err != nil {
		return err
	}

	if config.RateLimit < 0 {
		return fmt.Errorf("rate_limit %v is negative", config.RateLimit)
	}
	if config.RateLimit > 0 && config.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", config.RateBurst)
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateURL(origin); err != nil {
			return fmt.Errorf("allowed origin %q: %w", origin, err)
		}
	}

	return nil
}

func validateAppConfig(config *AppConfig) error {
	if strings.TrimSpace(config.Target) == "" {
		return fmt.Errorf("target selector is empty")
	}
	if config.KeyProp == "" {
		return fmt.Errorf("key_prop is empty")
	}
	if _, err := reactive.ParsePolicy(config.Policy); err != nil {
		return err
	}
	if err := validation.ValidateURL(config.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if config.StateFile != "" {
		if err := validation.ValidatePath(config.StateFile); err != nil {
			return fmt.Errorf("invalid state_file '%s': %w", config.StateFile, err)
		}
	}
	return nil
}
