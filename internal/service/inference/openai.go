package inference

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible chat completions API
// such as OpenRouter.
type OpenAIProvider struct {
	client openai.Client
	name   string
}

// NewOpenAIProvider creates a provider. SDK retries are disabled: each model
// is contacted at most once per translation.
func NewOpenAIProvider(name, apiKey, baseURL string, httpClient *http.Client, headers map[string]string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	for k, v := range headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		name:   name,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, model, prompt string, params Params) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(params.MaxTokens)),
		Temperature: openai.Float(params.Temperature),
	}

	resp, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
