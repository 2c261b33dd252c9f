package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings file. All fields are optional; the file
// itself is optional. Per-user language preferences are stored here so
// they survive restarts.
type Settings struct {
	Model      string            `yaml:"model,omitempty"`
	BaseURL    string            `yaml:"base_url,omitempty"`
	APIKey     string            `yaml:"api_key,omitempty"`
	DataDir    string            `yaml:"data_dir,omitempty"`
	PromptsDir string            `yaml:"prompts_dir,omitempty"`
	Languages  map[string]string `yaml:"languages,omitempty"`

	path string
	mu   sync.Mutex
}

// DefaultSettingsPath returns ~/.navigator/config.yaml.
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".navigator", "config.yaml"), nil
}

// LoadSettings reads the settings file at path, or the default location
// when path is empty. A missing file yields empty settings; a present but
// unreadable or malformed file is a *ConfigurationError.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return nil, &ConfigurationError{Field: "settings path", Err: err}
		}
	}

	settings := &Settings{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, &ConfigurationError{Field: "settings file", Err: err}
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, &ConfigurationError{Field: "settings file", Err: err}
	}
	return settings, nil
}

// LanguageFor returns the stored language preference for the user, or
// empty when none is stored.
func (s *Settings) LanguageFor(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Languages[userID]
}

// SetLanguage records the user's language preference in memory. Call
// Save to persist it.
func (s *Settings) SetLanguage(userID, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Languages == nil {
		s.Languages = make(map[string]string)
	}
	s.Languages[userID] = language
}

// Save writes the settings back to their file atomically: a temp file in
// the same directory is written first, then renamed over the target.
func (s *Settings) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
