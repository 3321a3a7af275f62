package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/claudio-seo/claudio/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	claudeEndpoint   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// ClaudeProvider calls the Anthropic Messages API over plain HTTP.
type ClaudeProvider struct {
	cfg *config.Config
}

// NewClaudeProvider creates a provider for the configured Anthropic key.
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	return &ClaudeProvider{cfg: cfg}
}

// Identifier returns the provider identifier.
func (p *ClaudeProvider) Identifier() string { return "claude" }

// Generate sends a single user message and concatenates the returned text blocks.
func (p *ClaudeProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := buildClaudeRequest(model, prompt, p.cfg.Claude.MaxTokens)
	if err != nil {
		return "", err
	}

	baseURL := p.cfg.Claude.BaseURL
	if baseURL == "" {
		baseURL = claudeEndpoint
	}
	url := baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.Claude.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if p.cfg.RequestLog {
		logging.WithContext(ctx).Debugf("claude request: POST %s key=%s", url, util.HideAPIKey(p.cfg.Claude.APIKey))
	}

	httpResp, err := util.NewHTTPClient(&p.cfg.SDKConfig, 0).Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			logging.WithContext(ctx).Errorf("claude executor: close response body error: %v", errClose)
		}
	}()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", StatusError{Code: httpResp.StatusCode, Msg: msg}
	}
	return claudeText(data), nil
}

func buildClaudeRequest(model, prompt string, maxTokens int) ([]byte, error) {
	out := []byte(`{"messages":[{"role":"user","content":""}]}`)
	var err error
	if out, err = sjson.SetBytes(out, "model", model); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "max_tokens", maxTokens); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "messages.0.content", prompt); err != nil {
		return nil, fmt.Errorf("claude: encode prompt: %w", err)
	}
	return out, nil
}

// claudeText joins the text of every content block of type text.
func claudeText(payload []byte) string {
	var b strings.Builder
	gjson.GetBytes(payload, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			b.WriteString(block.Get("text").String())
		}
		return true
	})
	return b.String()
}
