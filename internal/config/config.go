// Package config loads the hxselect CLI configuration from a config file,
// HXSELECT_* environment variables and command line flags.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when loaded values fail validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

const (
	appName = "hxselect"

	defaultAddr     = ":8080"
	defaultBasePath = "/_c/"
	defaultLogLevel = "info"
	defaultLogFmt   = "json"
	defaultTimeout  = 5 * time.Second
	defaultMinChars = 3
	defaultCache    = 256
)

// Server configures the demo server.
type Server struct {
	Addr     string `mapstructure:"addr"`
	BasePath string `mapstructure:"base_path"`
	// Key signs and encrypts component props, hex or base64 encoded. A
	// random key is generated when empty.
	Key string `mapstructure:"key"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Search configures widget searches.
type Search struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MinChars  int           `mapstructure:"min_chars"`
	CacheSize int           `mapstructure:"cache_size"`
}

// Catalog points at the YAML dataset served by the demo search endpoint.
type Catalog struct {
	Path string `mapstructure:"path"`
}

// Config is the CLI configuration.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
	Search  Search  `mapstructure:"search"`
	Catalog Catalog `mapstructure:"catalog"`
	Locale  string  `mapstructure:"locale"`
}

// New returns a viper instance with defaults, the env prefix and the
// default config search paths set up. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName(appName)
	v.AddConfigPath(".")
	v.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	v.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultAddr)
	v.SetDefault("server.base_path", defaultBasePath)
	v.SetDefault("server.key", "")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFmt)
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.timeout", defaultTimeout)
	v.SetDefault("search.min_chars", defaultMinChars)
	v.SetDefault("search.cache_size", defaultCache)
	v.SetDefault("catalog.path", "")
	v.SetDefault("locale", "en")
}

// Load reads the config file (file, if set, or the first hxselect.* on the
// search path) and unmarshals the merged settings. A missing config file
// on the search path is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := readConfig(v.ReadInConfig()); err != nil {
		return nil, err
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

func readConfig(err error) error {
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Search.MinChars < 0 {
		return fmt.Errorf("%w: search.min_chars must not be negative", ErrInvalidConfig)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("%w: search.timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Server.DecodeKey(); err != nil {
		return err
	}
	return nil
}

// DecodeKey returns the props key, or nil when none is configured.
func (s Server) DecodeKey() ([]byte, error) {
	if s.Key == "" {
		return nil, nil
	}
	if key, err := hex.DecodeString(s.Key); err == nil {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s.Key); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: server.key is neither hex nor base64", ErrInvalidConfig)
}
