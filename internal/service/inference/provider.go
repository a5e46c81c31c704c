package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Params are the fixed generation parameters sent with every attempt.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// DefaultParams matches what the hosted free models handle well for short jokes.
var DefaultParams = Params{MaxTokens: 500, Temperature: 0.7}

// Provider sends a single-message chat completion to one model.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// Complete returns choices[0].message.content, or "" when the response
	// carried no choices. Non-2xx responses are reported as *StatusError.
	Complete(ctx context.Context, model, prompt string, params Params) (string, error)
}

// Config holds the configuration for a provider.
type Config struct {
	Provider   string // compatible, openai, anthropic
	APIKey     string
	BaseURL    string // required for compatible
	HTTPClient *http.Client
	Headers    map[string]string
}

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderCompatible = "compatible"
)

var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrMissingAPIKey   = errors.New("API key is required")
	ErrMissingBaseURL  = errors.New("base URL is required for compatible provider")
	ErrNoModels        = errors.New("at least one model is required")
)

// StatusError is a non-2xx answer from the inference API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// NewProvider creates a provider based on cfg.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(ProviderOpenAI, cfg.APIKey, cfg.BaseURL, cfg.HTTPClient, cfg.Headers), nil
	case ProviderCompatible, "":
		if cfg.BaseURL == "" {
			return nil, ErrMissingBaseURL
		}
		return NewOpenAIProvider(ProviderCompatible, cfg.APIKey, cfg.BaseURL, cfg.HTTPClient, cfg.Headers), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	default:
		return nil, ErrInvalidProvider
	}
}
