// Package llm wraps the language model providers an audit can be generated with.
// Providers are registered from configuration when they carry an API key, and the
// Registry routes a model id to the provider that serves it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/tiktoken-go/tokenizer"
)

const generateTimeout = 5 * time.Minute

var (
	// ErrNoProviders is returned when no provider has an API key configured.
	ErrNoProviders = errors.New("llm: no model providers configured")
	// ErrUnknownModel is returned for a model id no registered provider serves.
	ErrUnknownModel = errors.New("llm: unknown model")
	// ErrPromptTooLarge is returned when the prompt exceeds the configured token budget.
	ErrPromptTooLarge = errors.New("llm: prompt exceeds token budget")
)

// StatusError is an upstream failure carrying the provider's HTTP status.
type StatusError struct {
	Code int
	Msg  string
}

func (e StatusError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("status %d", e.Code)
}

// StatusCode returns the upstream HTTP status.
func (e StatusError) StatusCode() int { return e.Code }

// Provider generates text for a prompt with one of its models.
type Provider interface {
	Identifier() string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Model is a selectable model and the provider that serves it.
type Model struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// Generation is the outcome of one Generate call.
type Generation struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	PromptTokens int    `json:"prompt_tokens"`
}

// Registry maps model ids to providers.
type Registry struct {
	providers map[string]Provider
	models    []Model
	maxTokens int
	codec     tokenizer.Codec
}

// NewRegistry registers every provider that has a key, in Gemini, Claude, OpenAI order.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider), maxTokens: cfg.Audit.MaxPromptTokens}
	if cfg.Gemini.Enabled() {
		r.Register(NewGeminiProvider(cfg), cfg.Gemini.Models)
	}
	if cfg.Claude.Enabled() {
		r.Register(NewClaudeProvider(cfg), cfg.Claude.Models)
	}
	if cfg.OpenAI.Enabled() {
		r.Register(NewOpenAIProvider(cfg), cfg.OpenAI.Models)
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("llm: load tokenizer: %w", err)
	}
	r.codec = codec
	return r, nil
}

// Register adds p as the provider for models. Earlier registrations win on duplicate ids.
func (r *Registry) Register(p Provider, models []config.ModelEntry) {
	for _, m := range models {
		key := strings.ToLower(m.ID)
		if _, exists := r.providers[key]; exists {
			continue
		}
		r.providers[key] = p
		r.models = append(r.models, Model{ID: m.ID, Label: m.Label, Provider: p.Identifier()})
	}
}

// Models lists the available models in registration order.
func (r *Registry) Models() []Model {
	if r == nil {
		return nil
	}
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

// CountTokens approximates the token count of text.
func (r *Registry) CountTokens(text string) int {
	if r == nil || r.codec == nil {
		return 0
	}
	n, err := r.codec.Count(text)
	if err != nil {
		return 0
	}
	return n
}

// Generate sends prompt to the provider serving modelID. An empty modelID picks the first model.
func (r *Registry) Generate(ctx context.Context, modelID, prompt string) (*Generation, error) {
	if r == nil || len(r.models) == 0 {
		return nil, ErrNoProviders
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = r.models[0].ID
	}
	provider, ok := r.providers[strings.ToLower(modelID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	tokens := r.CountTokens(prompt)
	if r.maxTokens > 0 && tokens > r.maxTokens {
		return nil, fmt.Errorf("%w: %d > %d", ErrPromptTooLarge, tokens, r.maxTokens)
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	entry := logging.WithContext(ctx).WithField("provider", provider.Identifier()).WithField("model", modelID)
	entry.WithField("tokens", tokens).Debug("llm: generating")
	text, err := provider.Generate(ctx, modelID, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm: %s: %w", provider.Identifier(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("llm: %s returned empty text", provider.Identifier())
	}
	entry.Infof("llm: generated %d characters", len(text))
	return &Generation{Text: text, Model: modelID, PromptTokens: tokens}, nil
}
