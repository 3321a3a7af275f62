package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/util"
	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	cfg    *config.Config
	apiKey string
}

// NewGeminiProvider creates a provider for the configured Gemini key.
func NewGeminiProvider(cfg *config.Config) *GeminiProvider {
	return &GeminiProvider{cfg: cfg, apiKey: cfg.Gemini.APIKey}
}

// Identifier returns the provider identifier.
func (p *GeminiProvider) Identifier() string { return "gemini" }

// Generate runs a single-turn generateContent call.
func (p *GeminiProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: util.NewHTTPClient(&p.cfg.SDKConfig, 0),
	}
	if base := p.cfg.Gemini.BaseURL; base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base + "/"}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", StatusError{Code: apiErr.Code, Msg: apiErr.Message}
		}
		return "", err
	}
	return resp.Text(), nil
}
