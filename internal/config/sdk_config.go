// Package config provides configuration management for the Claudio audit server.
// It handles loading and parsing YAML configuration files, environment overrides,
// and provides structured access to server, provider, Ahrefs, scraper and template settings.
package config

// SDKConfig holds the settings shared by every outbound HTTP client.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are socks5, http and https.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestLog enables logging of outbound request URLs at debug level.
	RequestLog bool `yaml:"request-log" json:"request-log"`
}

// ScraperConfig controls how target pages are fetched.
type ScraperConfig struct {
	// UserAgent is sent with every page request.
	UserAgent string `yaml:"user-agent,omitempty" json:"user-agent,omitempty"`

	// TimeoutSeconds bounds a single page fetch. <= 0 uses the default.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`

	// MaxBodyBytes caps the decoded page body. <= 0 uses the default.
	MaxBodyBytes int64 `yaml:"max-body-bytes,omitempty" json:"max-body-bytes,omitempty"`
}

// TemplateConfig points at optional Office templates. Empty paths use the built-in layouts.
type TemplateConfig struct {
	ReportDocx string `yaml:"report-docx,omitempty" json:"report-docx,omitempty"`
	TasksXlsx  string `yaml:"tasks-xlsx,omitempty" json:"tasks-xlsx,omitempty"`
}

// AuditConfig holds limits applied to a single audit run.
type AuditConfig struct {
	// MaxPromptTokens rejects prompts that would exceed this many tokens. <= 0 uses the default.
	MaxPromptTokens int `yaml:"max-prompt-tokens,omitempty" json:"max-prompt-tokens,omitempty"`

	// HistoryLimit bounds the in-memory audit history.
	HistoryLimit int `yaml:"history-limit,omitempty" json:"history-limit,omitempty"`
}
