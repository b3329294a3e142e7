package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		// ARRANGE
		viper.Reset()
		t.Chdir(t.TempDir())
		t.Setenv("OPENAI_API_KEY", "sk-test")

		// ACT
		cfg, err := LoadConfig()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.AppPort)
		assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
		assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
		assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
		assert.Equal(t, StoreSQLite, cfg.StoreDriver)
		assert.Equal(t, "chats", cfg.StoreID)
		assert.Equal(t, time.Duration(0), cfg.ChatTTL)
		assert.Equal(t, 5.0, cfg.DadJokeRateLimit)
		assert.True(t, cfg.SendReasoning)
		assert.False(t, cfg.SendSources)
		assert.Equal(t, 16, cfg.MailboxCapacity)
		assert.Empty(t, cfg.OTLPEndpoint)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		// ARRANGE
		viper.Reset()
		t.Chdir(t.TempDir())
		t.Setenv("LLM_PROVIDER", ProviderAnthropic)
		t.Setenv("ANTHROPIC_API_KEY", "ant-test")
		t.Setenv("STORE_DRIVER", StoreRedis)
		t.Setenv("NETLIFY_CHATS_BLOB_STORE_ID", "dad-chats")
		t.Setenv("CHAT_TTL", "24h")
		t.Setenv("SEND_SOURCES", "true")

		// ACT
		cfg, err := LoadConfig()

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
		assert.Equal(t, "ant-test", cfg.AnthropicAPIKey)
		assert.Equal(t, StoreRedis, cfg.StoreDriver)
		assert.Equal(t, "dad-chats", cfg.StoreID)
		assert.Equal(t, 24*time.Hour, cfg.ChatTTL)
		assert.True(t, cfg.SendSources)
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		// ARRANGE
		viper.Reset()
		t.Chdir(t.TempDir())
		t.Setenv("OPENAI_API_KEY", "")

		// ACT
		cfg, err := LoadConfig()

		// ASSERT
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY is required")
	})
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "OllamaNeedsNoKey", cfg: Config{LLMProvider: ProviderOllama, StoreDriver: StoreSQLite}},
		{name: "AnthropicKey", cfg: Config{LLMProvider: ProviderAnthropic, StoreDriver: StoreRedis}, wantErr: "ANTHROPIC_API_KEY is required"},
		{name: "UnknownProvider", cfg: Config{LLMProvider: "palm", StoreDriver: StoreSQLite}, wantErr: `unsupported LLM_PROVIDER "palm"`},
		{name: "UnknownStore", cfg: Config{LLMProvider: ProviderOllama, StoreDriver: "blobs"}, wantErr: `unsupported STORE_DRIVER "blobs"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
