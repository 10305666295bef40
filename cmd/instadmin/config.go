package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	API APIConfig `mapstructure:"api"`
	UI  UIConfig  `mapstructure:"ui"`
	ROR RORConfig `mapstructure:"ror"`
	Log LogConfig `mapstructure:"log"`
}

// APIConfig holds the institutions backend connection settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are sent with every request, e.g. the identity header an
	// authenticating proxy in front of the backend expects.
	Headers map[string]string `mapstructure:"headers"`
}

// UIConfig holds interactive view settings.
type UIConfig struct {
	// Debounce is the idle window before search input is applied in browse.
	Debounce time.Duration `mapstructure:"debounce"`

	// RefreshInterval reloads the browse list periodically. Zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// RORConfig controls the remote ROR registry check on submit.
type RORConfig struct {
	Verify  bool          `mapstructure:"verify"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from an optional .env file, an optional
// config file and INSTADMIN_* environment variables, in increasing order of
// precedence over the defaults. Variables already set in the environment win
// over the .env file.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("api.base_url", "http://localhost:8089")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.headers", map[string]string{})
	v.SetDefault("ui.debounce", "500ms")
	v.SetDefault("ui.refresh_interval", "0s")
	v.SetDefault("ror.verify", false)
	v.SetDefault("ror.timeout", "5s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	v.SetEnvPrefix("INSTADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url must not be empty")
	}
	if cfg.UI.Debounce < 0 {
		return nil, fmt.Errorf("ui.debounce must not be negative, got %s", cfg.UI.Debounce)
	}
	if cfg.UI.RefreshInterval < 0 {
		return nil, fmt.Errorf("ui.refresh_interval must not be negative, got %s", cfg.UI.RefreshInterval)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Output
// goes to w, which is stderr in normal use; stdout carries command output.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
