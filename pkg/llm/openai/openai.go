// Package openai provides an OpenAI-compatible llm.Provider implementation.
//
// It works against any chat-completions endpoint that speaks the OpenAI
// wire format: the hosted API, Azure deployments, or local gateways.
//
// Example:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pcl-labs/navigator/pkg/llm"
	"github.com/pcl-labs/navigator/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	client  openai.Client
	apiKey  string
	baseURL string
	model   string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// NewProvider creates a provider with the given API key.
//
// An empty apiKey falls back to OPENAI_API_KEY; an unset base URL falls
// back to OPENAI_BASE_URL, then the default endpoint.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (parameter or OPENAI_API_KEY)")
	}

	p := &Provider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	// Retry policy belongs to the caller, not the transport.
	p.client = openai.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithMaxRetries(0),
	)
	return p, nil
}

// Complete sends the turns to the chat-completions endpoint and returns
// the full response text. The call blocks until the model answers; any
// failure comes back as *llm.InvocationError.
func (p *Provider) Complete(ctx context.Context, turns []types.Turn) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: convertTurns(turns),
	})
	if err != nil {
		return "", &llm.InvocationError{Model: p.model, Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &llm.InvocationError{Model: p.model, Err: fmt.Errorf("empty response")}
	}
	return completion.Choices[0].Message.Content, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used for API requests.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// convertTurns maps our turn format onto OpenAI message params.
func convertTurns(turns []types.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(turn.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(turn.Content))
		default:
			out = append(out, openai.UserMessage(turn.Content))
		}
	}
	return out
}
