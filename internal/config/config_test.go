package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.ServerName != "mcp-template-mapper" {
		t.Errorf("Expected default server name to be 'mcp-template-mapper', got '%s'", cfg.ServerName)
	}

	if cfg.MaxFileSize != 50*1024*1024 {
		t.Errorf("Expected default max file size to be 50MB, got %d", cfg.MaxFileSize)
	}

	if cfg.Scale != 1.5 {
		t.Errorf("Expected default scale to be 1.5, got %v", cfg.Scale)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("Expected default api url to be '%s', got '%s'", DefaultAPIURL, cfg.APIURL)
	}

	if cfg.RenderTimeout != 30*time.Second || cfg.APITimeout != 30*time.Second {
		t.Errorf("Expected 30s timeouts, got render=%v api=%v", cfg.RenderTimeout, cfg.APITimeout)
	}

	if cfg.CatalogFile != "" {
		t.Errorf("Expected no catalog file by default, got '%s'", cfg.CatalogFile)
	}

	currentDir, _ := os.Getwd()
	if cfg.TemplateDirectory != currentDir {
		t.Errorf("Expected default template directory to be '%s', got '%s'", currentDir, cfg.TemplateDirectory)
	}
}

// validConfig returns a config that passes validation, rooted at dir
func validConfig(dir string) *Config {
	cfg := DefaultConfig()
	cfg.TemplateDirectory = dir
	cfg.MaxFileSize = 1024
	return cfg
}

func TestConfigValidate(t *testing.T) {
	catalogFile := filepath.Join(t.TempDir(), "fields.yaml")
	if err := os.WriteFile(catalogFile, []byte("fields: []\n"), 0o600); err != nil {
		t.Fatalf("Failed to write catalog file: %v", err)
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid stdio config", modify: func(c *Config) {}},
		{name: "valid server config", modify: func(c *Config) { c.Mode = ModeServer }},
		{name: "invalid mode", modify: func(c *Config) { c.Mode = "invalid" }, wantErr: "mode must be"},
		{
			name:    "port too low in server mode",
			modify:  func(c *Config) { c.Mode = ModeServer; c.Port = 0 },
			wantErr: "port must be between",
		},
		{
			name:    "port too high in server mode",
			modify:  func(c *Config) { c.Mode = ModeServer; c.Port = 70000 },
			wantErr: "port must be between",
		},
		{name: "port ignored in stdio mode", modify: func(c *Config) { c.Port = 0 }},
		{
			name:    "empty template directory",
			modify:  func(c *Config) { c.TemplateDirectory = "" },
			wantErr: "template directory cannot be empty",
		},
		{name: "invalid max file size", modify: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "zero scale", modify: func(c *Config) { c.Scale = 0 }, wantErr: "scale must be"},
		{name: "negative scale", modify: func(c *Config) { c.Scale = -1 }, wantErr: "scale must be"},
		{name: "scale above maximum", modify: func(c *Config) { c.Scale = 9 }, wantErr: "scale must be"},
		{name: "maximum scale", modify: func(c *Config) { c.Scale = DefaultMaxScale }},
		{name: "zero render timeout", modify: func(c *Config) { c.RenderTimeout = 0 }, wantErr: "render timeout"},
		{name: "zero api timeout", modify: func(c *Config) { c.APITimeout = 0 }, wantErr: "api timeout"},
		{name: "empty api url", modify: func(c *Config) { c.APIURL = "" }, wantErr: "url cannot be empty"},
		{name: "api url without scheme", modify: func(c *Config) { c.APIURL = "example.com/api" }, wantErr: "scheme"},
		{name: "api url with ftp scheme", modify: func(c *Config) { c.APIURL = "ftp://example.com" }, wantErr: "scheme"},
		{name: "api url without host", modify: func(c *Config) { c.APIURL = "http:///api" }, wantErr: "missing host"},
		{name: "https api url", modify: func(c *Config) { c.APIURL = "https://templates.example.com/api" }},
		{name: "existing catalog file", modify: func(c *Config) { c.CatalogFile = catalogFile }},
		{
			name:    "missing catalog file",
			modify:  func(c *Config) { c.CatalogFile = catalogFile + ".missing" },
			wantErr: "catalog file",
		},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "invalid" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t.TempDir())
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Config.Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     bool
	}{
		{name: "debug level", logLevel: "debug", want: true},
		{name: "info level", logLevel: "info", want: false},
		{name: "warn level", logLevel: "warn", want: false},
		{name: "error level", logLevel: "error", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:              "server",
		Host:              "localhost",
		Port:              8080,
		TemplateDirectory: "/home/user/forms",
		LogLevel:          "debug",
		MaxFileSize:       1024,
		Scale:             2,
		APIURL:            "http://localhost:8090/api",
		CatalogFile:       "fields.yaml",
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"TemplateDirectory: /home/user/forms",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"Scale: 2.00",
		"APIURL: http://localhost:8090/api",
		"Catalog: fields.yaml",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	nonExistentDir := filepath.Join(t.TempDir(), "non-existent", "forms")

	cfg := validConfig(nonExistentDir)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error for missing directory: %v", err)
	}

	info, err := os.Stat(nonExistentDir)
	if err != nil {
		t.Fatalf("Template directory should have been created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s should be a directory", nonExistentDir)
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	tempDir := t.TempDir()

	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level

			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level

			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}

func TestConfigModes(t *testing.T) {
	tests := []struct {
		mode       string
		wantServer bool
		wantStdio  bool
	}{
		{mode: "server", wantServer: true},
		{mode: "stdio", wantStdio: true},
		{mode: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			if got := cfg.IsServerMode(); got != tt.wantServer {
				t.Errorf("Config.IsServerMode() = %v, want %v", got, tt.wantServer)
			}
			if got := cfg.IsStdioMode(); got != tt.wantStdio {
				t.Errorf("Config.IsStdioMode() = %v, want %v", got, tt.wantStdio)
			}
		})
	}
}
