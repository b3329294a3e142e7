package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values of LLM_PROVIDER and STORE_DRIVER.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	AppPort  int    `mapstructure:"APP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	LLMProvider     string `mapstructure:"LLM_PROVIDER"`
	DefaultModel    string `mapstructure:"DEFAULT_MODEL"`
	OllamaURL       string `mapstructure:"OLLAMA_URL"`
	OpenAIBaseURL   string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIAPIKey    string `mapstructure:"OPENAI_API_KEY"`
	AnthropicAPIKey string `mapstructure:"ANTHROPIC_API_KEY"`

	StoreDriver   string        `mapstructure:"STORE_DRIVER"`
	StoreID       string        `mapstructure:"NETLIFY_CHATS_BLOB_STORE_ID"`
	DatabasePath  string        `mapstructure:"DATABASE_PATH"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	ChatTTL       time.Duration `mapstructure:"CHAT_TTL"`

	DadJokeAPIURL    string  `mapstructure:"DADJOKE_API_URL"`
	DadJokeRateLimit float64 `mapstructure:"DADJOKE_RATE_LIMIT"`

	SendReasoning   bool `mapstructure:"SEND_REASONING"`
	SendSources     bool `mapstructure:"SEND_SOURCES"`
	MailboxCapacity int  `mapstructure:"MAILBOX_CAPACITY"`

	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// keys lists every setting so that AutomaticEnv picks it up during Unmarshal
// even when it has no default.
var keys = []string{
	"OPENAI_BASE_URL", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	"REDIS_PASSWORD", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	viper.SetDefault("DEFAULT_MODEL", "gpt-4o-mini")
	viper.SetDefault("OLLAMA_URL", "http://ollama:11434")
	viper.SetDefault("STORE_DRIVER", StoreSQLite)
	viper.SetDefault("NETLIFY_CHATS_BLOB_STORE_ID", "chats")
	viper.SetDefault("DATABASE_PATH", "/data/chats.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("CHAT_TTL", "0s")
	viper.SetDefault("DADJOKE_API_URL", "https://icanhazdadjoke.com")
	viper.SetDefault("DADJOKE_RATE_LIMIT", 5)
	viper.SetDefault("SEND_REASONING", true)
	viper.SetDefault("SEND_SOURCES", false)
	viper.SetDefault("MAILBOX_CAPACITY", 16)
	viper.SetDefault("OTEL_SERVICE_NAME", "dad-joke-chat")
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the app cannot start with.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.StoreDriver {
	case StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}
