package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort              = 8317
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultScraperTimeout    = 10
	DefaultMaxBodyBytes      = 5 << 20
	DefaultMaxPromptTokens   = 30000
	DefaultHistoryLimit      = 200
	DefaultAhrefsBaseURL     = "https://api.ahrefs.com/v3"
	DefaultAhrefsDelayMS     = 1000
	DefaultAhrefsPageSize    = 20
	DefaultAhrefsMaxPages    = 3
	DefaultAhrefsCacheTTLMin = 60
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Host is the network interface the server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port" json:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files under the logs directory instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size of the logs directory. <= 0 disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	Gemini ProviderKey  `yaml:"gemini" json:"gemini"`
	Claude ClaudeKey    `yaml:"claude" json:"claude"`
	OpenAI ProviderKey  `yaml:"openai" json:"openai"`
	Ahrefs AhrefsConfig `yaml:"ahrefs" json:"ahrefs"`

	Scraper   ScraperConfig  `yaml:"scraper" json:"scraper"`
	Templates TemplateConfig `yaml:"templates" json:"templates"`
	Audit     AuditConfig    `yaml:"audit" json:"audit"`
}

// LoadConfig reads a YAML configuration file from the given path,
// applies environment overrides and defaults, and returns the result.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing or empty
// file when optional is true, returning a config built from the environment and defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(configFile) == "" {
		if !optional {
			return nil, fmt.Errorf("config: path is empty")
		}
	} else {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !optional || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: failed to read %s: %w", configFile, err)
			}
		}
		if len(data) > 0 {
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", configFile, err)
			}
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Sanitize()
	return cfg, nil
}

// ApplyEnv overrides secrets and the listen port from the environment.
// Values already present in the file win over empty environment entries only.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if cfg == nil || lookup == nil {
		return
	}
	first := func(keys ...string) string {
		for _, key := range keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed
				}
			}
		}
		return ""
	}

	if v := first("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := first("ANTHROPIC_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := first("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := first("AHREFS_API_KEY"); v != "" {
		cfg.Ahrefs.APIKey = v
	}
	if v := first("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
}

// Sanitize trims string fields and fills defaults for unset values.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.ProxyURL = strings.TrimSpace(cfg.ProxyURL)
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}

	cfg.Gemini.sanitize(defaultGeminiModels)
	cfg.Claude.sanitize(defaultClaudeModels)
	if cfg.Claude.MaxTokens <= 0 {
		cfg.Claude.MaxTokens = DefaultClaudeMaxTokens
	}
	cfg.OpenAI.sanitize(defaultOpenAIModels)
	cfg.Ahrefs.sanitize()

	cfg.Scraper.UserAgent = strings.TrimSpace(cfg.Scraper.UserAgent)
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = DefaultUserAgent
	}
	if cfg.Scraper.TimeoutSeconds <= 0 {
		cfg.Scraper.TimeoutSeconds = DefaultScraperTimeout
	}
	if cfg.Scraper.MaxBodyBytes <= 0 {
		cfg.Scraper.MaxBodyBytes = DefaultMaxBodyBytes
	}

	cfg.Templates.ReportDocx = strings.TrimSpace(cfg.Templates.ReportDocx)
	cfg.Templates.TasksXlsx = strings.TrimSpace(cfg.Templates.TasksXlsx)

	if cfg.Audit.MaxPromptTokens <= 0 {
		cfg.Audit.MaxPromptTokens = DefaultMaxPromptTokens
	}
	if cfg.Audit.HistoryLimit <= 0 {
		cfg.Audit.HistoryLimit = DefaultHistoryLimit
	}
}
