package config

import (
	"github.com/pcl-labs/navigator/pkg/llm/openai"
)

// BuildProvider creates the model provider from the resolved
// configuration.
func (c *Config) BuildProvider() (*openai.Provider, error) {
	opts := []openai.ProviderOption{
		openai.WithModel(c.Model),
	}
	if c.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.BaseURL))
	}
	provider, err := openai.NewProvider(c.APIKey, opts...)
	if err != nil {
		return nil, &ConfigurationError{Field: "provider", Err: err}
	}
	return provider, nil
}
