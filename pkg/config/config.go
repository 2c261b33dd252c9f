// Package config resolves startup configuration from CLI flags,
// environment variables (including a local .env file), and an optional
// YAML settings file, in that precedence order. Missing required
// credentials are a constructor error: the application refuses to start
// rather than limping along without a working provider.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Defaults applied when no other source provides a value.
const (
	DefaultModel    = "gpt-4o-mini"
	DefaultLanguage = "en"
)

// ConfigurationError reports a configuration that cannot produce a
// working application. It is fatal at startup scope.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %s is required", e.Field)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Config is the fully resolved startup configuration.
type Config struct {
	// Provider settings.
	Model   string
	BaseURL string
	APIKey  string

	// Storage and prompt locations.
	DataDir    string
	PromptsDir string

	// Per-user display language, resolvable through the settings file.
	Language string

	settings *Settings
}

// Flags carries the CLI-provided values. Empty fields mean "not set".
type Flags struct {
	Model        string
	BaseURL      string
	APIKey       string
	DataDir      string
	PromptsDir   string
	Language     string
	SettingsPath string
}

// Load resolves the configuration for the given user. Precedence per
// value: flag, then environment, then settings file, then default.
// A .env file in the working directory is folded into the environment
// first; a missing .env is not an error.
func Load(userID string, flags Flags) (*Config, error) {
	// godotenv never overwrites variables already set in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, &ConfigurationError{Field: ".env", Err: err}
	}

	settings, err := LoadSettings(flags.SettingsPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Model:      resolve(flags.Model, os.Getenv("NAVIGATOR_MODEL"), settings.Model, DefaultModel),
		BaseURL:    resolve(flags.BaseURL, os.Getenv("OPENAI_BASE_URL"), settings.BaseURL, ""),
		APIKey:     resolve(flags.APIKey, os.Getenv("OPENAI_API_KEY"), settings.APIKey, ""),
		DataDir:    resolve(flags.DataDir, os.Getenv("NAVIGATOR_DATA_DIR"), settings.DataDir, ""),
		PromptsDir: resolve(flags.PromptsDir, os.Getenv("NAVIGATOR_PROMPTS_DIR"), settings.PromptsDir, "prompts"),
		Language:   resolve(flags.Language, os.Getenv("NAVIGATOR_LANGUAGE"), settings.LanguageFor(userID), DefaultLanguage),
		settings:   settings,
	}

	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Field: "api key (OPENAI_API_KEY)"}
	}

	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, &ConfigurationError{Field: "data dir", Err: err}
		}
		cfg.DataDir = filepath.Join(homeDir, ".navigator", "data")
	}

	return cfg, nil
}

// SaveLanguage persists the user's language preference to the settings
// file and updates the in-memory value.
func (c *Config) SaveLanguage(userID, language string) error {
	c.Language = language
	c.settings.SetLanguage(userID, language)
	return c.settings.Save()
}

// resolve returns the first non-empty value in precedence order.
func resolve(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
