package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ServerEnvPrefix prefixes environment overrides of the templates API server
	ServerEnvPrefix = "TEMPLATES_API"

	DefaultServerPort = 8090
	DefaultDBPath     = "data/templates.db"
)

// ErrHelpRequested is returned when the arguments ask for usage output
var ErrHelpRequested = errors.New("help requested")

// ServerConfig holds configuration for the templates API server
type ServerConfig struct {
	Host        string
	Port        int
	DBPath      string
	LogLevel    string
	MaxFileSize int64
}

// DefaultServerConfig returns the templates API defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:        DefaultHost,
		Port:        DefaultServerPort,
		DBPath:      DefaultDBPath,
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadServerFromArgs parses args (without the program name) on a private flag
// set and viper instance, so it can be called repeatedly.
func LoadServerFromArgs(args []string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	v := viper.New()
	v.SetEnvPrefix(ServerEnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("db", cfg.DBPath)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)

	fs := pflag.NewFlagSet("templates-api", pflag.ContinueOnError)
	fs.String("host", cfg.Host, "Listen address")
	fs.Int("port", cfg.Port, "Listen port")
	fs.String("db", cfg.DBPath, "SQLite database file")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum uploaded PDF size in bytes")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.DBPath = v.GetString("db")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")

	if cfg.DBPath != "" && cfg.DBPath != ":memory:" {
		if abs, err := filepath.Abs(cfg.DBPath); err == nil {
			cfg.DBPath = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.DBPath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	return validateLogLevel(c.LogLevel)
}

// Address returns the server address as host:port
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *ServerConfig) IsDebug() bool {
	return c.LogLevel == "debug"
}

func (c *ServerConfig) String() string {
	return fmt.Sprintf("ServerConfig{Host: %s, Port: %d, DBPath: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Host, c.Port, c.DBPath, c.LogLevel, c.MaxFileSize)
}
