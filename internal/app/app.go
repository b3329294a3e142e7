package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/IMax153/netlify-ai-gateway/internal/api"
	"github.com/IMax153/netlify-ai-gateway/internal/config"
	"github.com/IMax153/netlify-ai-gateway/internal/database"
	"github.com/IMax153/netlify-ai-gateway/internal/icanhazdadjoke"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/llm/anthropic"
	"github.com/IMax153/netlify-ai-gateway/internal/llm/ollama"
	"github.com/IMax153/netlify-ai-gateway/internal/llm/openai"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
	"github.com/IMax153/netlify-ai-gateway/internal/service"
	"github.com/IMax153/netlify-ai-gateway/internal/tools"
	"github.com/IMax153/netlify-ai-gateway/internal/translate"
)

const shutdownTimeout = 10 * time.Second

// App holds the server and the connections it owns. Exactly one of DB and
// Redis is set, depending on the store driver.
type App struct {
	Server *http.Server
	DB     *sql.DB
	Redis  *redis.Client
}

// NewApp builds every dependency from cfg without starting the server.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{}

	store, err := app.openStore(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	jokes := icanhazdadjoke.NewClient(cfg.DadJokeAPIURL, cfg.DadJokeRateLimit)
	chatService := service.NewChatService(store, provider, tools.NewDadJokeToolkit(jokes), service.ChatOptions{
		DefaultModel: cfg.DefaultModel,
		Translate: translate.Options{
			SendReasoning: cfg.SendReasoning,
			SendSources:   cfg.SendSources,
		},
		MailboxCapacity: cfg.MailboxCapacity,
		Logger:          slog.Default(),
	})

	chatHandler := api.NewChatHandler(chatService)
	router := api.NewRouter(chatHandler)

	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return app, nil
}

func (a *App) openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.Redis = rdb
		slog.Info("Successfully connected to Redis.", "addr", cfg.RedisAddr)
		return repository.NewRedisStore(rdb, cfg.StoreID, cfg.ChatTTL), nil
	default:
		db, err := database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = db
		slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)
		return repository.NewSQLiteStore(db, cfg.StoreID), nil
	}
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.NewProvider(cfg.OllamaURL), nil
	case config.ProviderOpenAI:
		return openai.NewProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	case config.ProviderAnthropic:
		return anthropic.NewProvider(cfg.AnthropicAPIKey), nil
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
}

// Close releases the store connection.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)

	logConfigSource()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		slog.Error("Failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	if cfg.LLMProvider == config.ProviderOllama {
		if err := waitForOllama(ctx, cfg.OllamaURL); err != nil {
			slog.Error("Ollama never became ready", "error", err)
			return 1
		}
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("Failed to close store connection", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "port", cfg.AppPort, "provider", cfg.LLMProvider, "store", cfg.StoreDriver)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// waitForOllama polls the Ollama server until it answers or ctx is done.
func waitForOllama(ctx context.Context, ollamaURL string) error {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if resp != nil {
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check", "error", bErr)
			}
		}
		if err == nil && resp.StatusCode == http.StatusOK {
			slog.Info("Ollama is ready.")
			return nil
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
