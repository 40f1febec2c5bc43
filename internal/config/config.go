package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by Validate when no provider credential is configured.
var ErrMissingAPIKey = errors.New("config: llm.api_key is required")

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Server  ServerConfig
	History HistoryConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// HistoryConfig selects the conversation store backend.
// Backend is "memory" or "sqlite"; DSN only applies to sqlite.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// LogConfig holds logging options. An empty File logs to stdout only.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MetricsConfig holds the Prometheus options
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

const (
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultModel        = "gpt-4o-mini"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "jarvis_gateway")
}

// Load loads the configuration from the file named by CONFIG_PATH, falling
// back to ./config.yaml. A missing file is not an error: defaults and
// environment variables (LLM_API_KEY, SERVER_PORT, ...) still apply.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports startup-time misconfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.History.Backend {
	case "", "memory", "sqlite":
	default:
		return errors.New("config: history.backend must be memory or sqlite, got " + c.History.Backend)
	}
	return nil
}
