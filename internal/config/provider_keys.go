package config

import (
	"strings"
	"time"
)

// DefaultClaudeMaxTokens is the completion budget sent to the Messages API.
const DefaultClaudeMaxTokens = 8192

// ModelEntry is a selectable model exposed in the UI.
type ModelEntry struct {
	// ID is the upstream model identifier.
	ID string `yaml:"id" json:"id"`

	// Label is the human readable name shown to users. Defaults to ID.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// ProviderKey is the credential and model list for one LLM provider.
// A provider without an API key is not offered.
type ProviderKey struct {
	APIKey string `yaml:"api-key" json:"api-key"`

	// BaseURL overrides the provider endpoint, mostly for tests and gateways.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	Models []ModelEntry `yaml:"models,omitempty" json:"models,omitempty"`
}

// ClaudeKey extends ProviderKey with the Messages API completion budget.
type ClaudeKey struct {
	ProviderKey `yaml:",inline"`

	MaxTokens int `yaml:"max-tokens,omitempty" json:"max-tokens,omitempty"`
}

// AhrefsConfig configures the optional backlink and ranking data source.
type AhrefsConfig struct {
	APIKey  string `yaml:"api-key" json:"api-key"`
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	// RequestDelayMS is the pause between consecutive API calls. Negative disables it.
	RequestDelayMS int `yaml:"request-delay-ms,omitempty" json:"request-delay-ms,omitempty"`

	// PageSize and MaxPages bound the organic keyword pagination loop.
	PageSize int `yaml:"page-size,omitempty" json:"page-size,omitempty"`
	MaxPages int `yaml:"max-pages,omitempty" json:"max-pages,omitempty"`

	// CacheTTLMinutes keeps fetched domain data around to save API credits. Negative disables caching.
	CacheTTLMinutes int `yaml:"cache-ttl-minutes,omitempty" json:"cache-ttl-minutes,omitempty"`
}

var (
	defaultGeminiModels = []ModelEntry{{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash"}}
	defaultClaudeModels = []ModelEntry{
		{ID: "claude-sonnet-4-5", Label: "Claude Sonnet 4.5"},
		{ID: "claude-opus-4-5", Label: "Claude Opus 4.5"},
	}
	defaultOpenAIModels = []ModelEntry{{ID: "gpt-4o", Label: "GPT-4o"}}
)

// Enabled reports whether the provider has a credential.
func (k ProviderKey) Enabled() bool { return k.APIKey != "" }

// Enabled reports whether Ahrefs data can be fetched.
func (a AhrefsConfig) Enabled() bool { return a.APIKey != "" }

// RequestDelay returns the configured pause between API calls.
func (a AhrefsConfig) RequestDelay() time.Duration {
	if a.RequestDelayMS <= 0 {
		return 0
	}
	return time.Duration(a.RequestDelayMS) * time.Millisecond
}

// CacheTTL returns how long fetched data stays cached; zero disables caching.
func (a AhrefsConfig) CacheTTL() time.Duration {
	if a.CacheTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(a.CacheTTLMinutes) * time.Minute
}

// sanitize trims credentials and deduplicates models by ID, falling back to defaults.
func (k *ProviderKey) sanitize(defaults []ModelEntry) {
	k.APIKey = strings.TrimSpace(k.APIKey)
	k.BaseURL = strings.TrimRight(strings.TrimSpace(k.BaseURL), "/")

	seen := make(map[string]struct{}, len(k.Models))
	out := make([]ModelEntry, 0, len(k.Models))
	for _, m := range k.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		key := strings.ToLower(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		label := strings.TrimSpace(m.Label)
		if label == "" {
			label = id
		}
		out = append(out, ModelEntry{ID: id, Label: label})
	}
	if len(out) == 0 {
		out = append(out, defaults...)
	}
	k.Models = out
}

func (a *AhrefsConfig) sanitize() {
	a.APIKey = strings.TrimSpace(a.APIKey)
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.BaseURL == "" {
		a.BaseURL = DefaultAhrefsBaseURL
	}
	if a.RequestDelayMS == 0 {
		a.RequestDelayMS = DefaultAhrefsDelayMS
	}
	if a.PageSize <= 0 {
		a.PageSize = DefaultAhrefsPageSize
	}
	if a.MaxPages <= 0 {
		a.MaxPages = DefaultAhrefsMaxPages
	}
	if a.CacheTTLMinutes == 0 {
		a.CacheTTLMinutes = DefaultAhrefsCacheTTLMin
	}
}
