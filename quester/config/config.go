package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// SearchConfig stores evidence retrieval settings.
type SearchConfig struct {
	APIKey      string `mapstructure:"api_key"`      // Tavily API key (env SEARCH_API_KEY)
	Depth       string `mapstructure:"depth"`        // "basic" or "advanced"
	MaxResults  int    `mapstructure:"max_results"`  // text result limit
	MaxImages   int    `mapstructure:"max_images"`   // image result limit
	TimeoutSecs int    `mapstructure:"timeout_secs"` // HTTP timeout per search call
}

// LLMConfig stores generation provider settings.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"` // OpenAI-compatible endpoint
	APIKey      string  `mapstructure:"api_key"`  // env LLM_API_KEY
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
}

// DatabaseConfig stores the embedded libsql location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PipelineConfig stores answer pipeline behavior.
type PipelineConfig struct {
	NoAnswerMessage string `mapstructure:"no_answer_message"`
	StreamBuffer    int    `mapstructure:"stream_buffer"`
	EnableTracing   bool   `mapstructure:"enable_tracing"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("search.api_key", "")
	viper.SetDefault("search.depth", "basic")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.max_images", 5)
	viper.SetDefault("search.timeout_secs", 10)

	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout_secs", 120)

	viper.SetDefault("database.path", "data/quester.db")

	viper.SetDefault("pipeline.no_answer_message", "No relevant information was found. Try different keywords.")
	viper.SetDefault("pipeline.stream_buffer", 16)
	viper.SetDefault("pipeline.enable_tracing", true)

	// search.api_key becomes SEARCH_API_KEY, llm.api_key becomes LLM_API_KEY.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults plus env vars apply.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
