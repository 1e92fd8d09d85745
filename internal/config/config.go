// Package config provides configuration loading and validation for the service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the service configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or are read
// from the environment.
type Config struct {
	// Server
	Port        int    `json:"port,omitempty"`          // HTTP listen port
	DatabaseURL string `json:"database_url,omitempty"`  // PostgreSQL connection URL
	LinkBaseURL string `json:"link_base_url,omitempty"` // Public base URL embedded in download links

	// Provider
	ProviderBaseURL string `json:"provider_base_url,omitempty"` // Conversational-AI provider API base URL
	ProviderAPIKey  string `json:"provider_api_key,omitempty"`  // Provider API key

	// Summarization
	GeminiAPIKey string `json:"gemini_api_key,omitempty"` // Gemini API key

	// Storage
	StorageRoot   string `json:"storage_root,omitempty"`   // Root directory for stored artifacts
	SigningSecret string `json:"signing_secret,omitempty"` // Secret for presigned artifact links

	// Email
	SendgridAPIKey string `json:"sendgrid_api_key,omitempty"` // SendGrid API key
	FromEmail      string `json:"from_email,omitempty"`       // Sender address for notifications
	FromName       string `json:"from_name,omitempty"`        // Sender display name

	// Behavior
	TokenTTLHours int  `json:"token_ttl_hours,omitempty"` // Download token lifetime (default 24)
	Verbose       bool `json:"verbose,omitempty"`         // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. Values already set on
// the receiver are kept; the environment only fills gaps, so a config file
// wins over the environment.
func (c *Config) FromEnv() *Config {
	result := *c

	envFill := func(target *string, key string) {
		if *target == "" {
			*target = os.Getenv(key)
		}
	}

	envFill(&result.DatabaseURL, "DATABASE_URL")
	envFill(&result.LinkBaseURL, "LINK_BASE_URL")
	envFill(&result.ProviderBaseURL, "PROVIDER_BASE_URL")
	envFill(&result.ProviderAPIKey, "PROVIDER_API_KEY")
	envFill(&result.GeminiAPIKey, "GEMINI_API_KEY")
	envFill(&result.StorageRoot, "STORAGE_ROOT")
	envFill(&result.SigningSecret, "SIGNING_SECRET")
	envFill(&result.SendgridAPIKey, "SENDGRID_API_KEY")
	envFill(&result.FromEmail, "FROM_EMAIL")
	envFill(&result.FromName, "FROM_NAME")

	return &result
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.TokenTTLHours < 0 {
		return fmt.Errorf("config error: 'token_ttl_hours' must be non-negative")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required (or set DATABASE_URL)")
	}
	if c.StorageRoot == "" {
		return fmt.Errorf("config error: 'storage_root' is required (or set STORAGE_ROOT)")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled in.
func (c *Config) MergeWithDefaults() Config {
	result := *c

	if result.Port == 0 {
		result.Port = 8080
	}
	if result.LinkBaseURL == "" {
		result.LinkBaseURL = fmt.Sprintf("http://localhost:%d", result.Port)
	}
	if result.TokenTTLHours == 0 {
		result.TokenTTLHours = 24
	}
	if result.FromName == "" {
		result.FromName = "Conversation Recap"
	}

	return result
}
