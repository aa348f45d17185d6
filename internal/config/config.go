package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 50 * 1024 * 1024 // 50MB
	DefaultScale         = 1.5
	DefaultMaxScale      = 8.0
	DefaultAPIURL        = "http://127.0.0.1:8090/api"
	DefaultAPITimeout    = 30 * time.Second
	DefaultRenderTimeout = 30 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes environment overrides of the editor
	EnvPrefix = "TEMPLATE_MAPPER"
)

// Config holds all configuration for the template mapper MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Directory template PDFs are opened from
	TemplateDirectory string

	// Editor configuration
	Scale         float64
	RenderTimeout time.Duration
	CatalogFile   string // optional YAML catalog; built-in catalog when empty

	// Templates API
	APIURL     string
	APITimeout time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio,
		Host:              DefaultHost,
		Port:              DefaultPort,
		TemplateDirectory: currentDir,
		Scale:             DefaultScale,
		RenderTimeout:     DefaultRenderTimeout,
		APIURL:            DefaultAPIURL,
		APITimeout:        DefaultAPITimeout,
		Version:           "1.0.0",
		ServerName:        "mcp-template-mapper",
		LogLevel:          DefaultLogLevel,
		MaxFileSize:       DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.TemplateDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.TemplateDirectory); err == nil {
			cfg.TemplateDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.TemplateDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("scale", cfg.Scale)
	viper.SetDefault("rendertimeout", cfg.RenderTimeout)
	viper.SetDefault("catalog", cfg.CatalogFile)
	viper.SetDefault("apiurl", cfg.APIURL)
	viper.SetDefault("apitimeout", cfg.APITimeout)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.TemplateDirectory, "Directory containing template PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Float64("scale", cfg.Scale, "Initial zoom scale for rendering")
	pflag.Duration("rendertimeout", cfg.RenderTimeout, "Maximum time a single page render may take")
	pflag.String("catalog", cfg.CatalogFile, "YAML file with the field catalog (built-in catalog if empty)")
	pflag.String("apiurl", cfg.APIURL, "Base URL of the templates API")
	pflag.Duration("apitimeout", cfg.APITimeout, "Timeout for templates API requests")
}

var flagNames = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"scale", "rendertimeout", "catalog", "apiurl", "apitimeout",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Template Mapper - bind catalog fields to regions of PDF form templates\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                     "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --apiurl=https://example.com/api         # custom templates API\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081  # SSE server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, strings.ToUpper(name))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.TemplateDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Scale = viper.GetFloat64("scale")
	cfg.RenderTimeout = viper.GetDuration("rendertimeout")
	cfg.CatalogFile = viper.GetString("catalog")
	cfg.APIURL = viper.GetString("apiurl")
	cfg.APITimeout = viper.GetDuration("apitimeout")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.TemplateDirectory == "" {
		return errors.New("template directory cannot be empty")
	}

	if _, err := os.Stat(c.TemplateDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.TemplateDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create template directory %s: %w", c.TemplateDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access template directory %s: %w", c.TemplateDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.Scale <= 0 || c.Scale > DefaultMaxScale {
		return fmt.Errorf("scale must be in (0, %.0f], got %v", DefaultMaxScale, c.Scale)
	}

	if c.RenderTimeout <= 0 {
		return errors.New("render timeout must be positive")
	}

	if c.APITimeout <= 0 {
		return errors.New("api timeout must be positive")
	}

	if err := validateURL(c.APIURL); err != nil {
		return err
	}

	if c.CatalogFile != "" {
		if _, err := os.Stat(c.CatalogFile); err != nil {
			return fmt.Errorf("cannot access catalog file %s: %w", c.CatalogFile, err)
		}
	}

	return validateLogLevel(c.LogLevel)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("templates API url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid templates API url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid templates API url %s: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid templates API url %s: missing host", raw)
	}
	return nil
}

func validateLogLevel(level string) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateDirectory: %s, LogLevel: %s, "+
		"MaxFileSize: %d, Scale: %.2f, APIURL: %s, Catalog: %s}",
		c.Mode, c.Host, c.Port, c.TemplateDirectory, c.LogLevel,
		c.MaxFileSize, c.Scale, c.APIURL, c.CatalogFile)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
