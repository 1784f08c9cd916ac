// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultCacheDir is the default directory for AI extraction caches.
const DefaultCacheDir = ".ai_cache"

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig
	AI     AIConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// AIConfig holds Azure OpenAI specific configuration for field extraction.
type AIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	CacheDir   string
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("ai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("ai.api_key", "AZURE_OPENAI_API_KEY")
	v.BindEnv("ai.deployment", "AZURE_OPENAI_DEPLOYMENT")
	v.BindEnv("ai.cache_dir", "BOARDTRACK_CACHE_DIR")

	v.SetDefault("github.domain", "github.com")
	v.SetDefault("ai.deployment", "gpt-4.1-mini")
	v.SetDefault("ai.cache_dir", DefaultCacheDir)

	// Create config structure
	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		AI: AIConfig{
			Endpoint:   v.GetString("ai.endpoint"),
			APIKey:     v.GetString("ai.api_key"),
			Deployment: v.GetString("ai.deployment"),
			CacheDir:   v.GetString("ai.cache_dir"),
		},
	}

	return config, nil
}

// ValidateGitHubConfig ensures the GitHub token is present.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variable: GITHUB_TOKEN")
	}
	return nil
}

// ValidateAIConfig validates the Azure OpenAI configuration. It is only
// called when AI extraction is enabled, so a missing endpoint or key is
// an error here even though both are optional for a plain export.
func ValidateAIConfig(config *Config) error {
	var missingVars []string

	if config.AI.Endpoint == "" {
		missingVars = append(missingVars, "AZURE_OPENAI_ENDPOINT")
	}
	if config.AI.APIKey == "" {
		missingVars = append(missingVars, "AZURE_OPENAI_API_KEY")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
