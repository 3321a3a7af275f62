package llm

import (
	"context"
	"errors"

	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the chat completions API through go-openai.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider for the configured OpenAI key.
func NewOpenAIProvider(cfg *config.Config) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	clientCfg.HTTPClient = util.NewHTTPClient(&cfg.SDKConfig, 0)
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg)}
}

// Identifier returns the provider identifier.
func (p *OpenAIProvider) Identifier() string { return "openai" }

// Generate sends prompt as a single user message.
func (p *OpenAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", StatusError{Code: apiErr.HTTPStatusCode, Msg: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", StatusError{Code: reqErr.HTTPStatusCode, Msg: reqErr.Error()}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
