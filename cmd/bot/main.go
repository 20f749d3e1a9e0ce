package main

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/voxlane/symphony/internal/bot"
	"github.com/voxlane/symphony/internal/llm"
	"github.com/voxlane/symphony/internal/moderation"
	"github.com/voxlane/symphony/internal/slack"
	"github.com/voxlane/symphony/internal/storage"
	"github.com/voxlane/symphony/internal/tools"
	"github.com/voxlane/symphony/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	timeout := time.Duration(cfg.Bot.TimeoutSeconds) * time.Second
	researchTimeout := time.Duration(cfg.Providers.Research.TimeoutSeconds) * time.Second

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the OpenAI-compatible client
	aiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		aiConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	aiClient := openai.NewClientWithConfig(aiConfig)

	// Initialize the Slack clients
	api := slackapi.New(
		cfg.Slack.BotToken,
		slackapi.OptionAppLevelToken(cfg.Slack.AppToken),
	)
	identity, err := api.AuthTest()
	if err != nil {
		logger.Fatal("Failed to authenticate with Slack", zap.Error(err))
	}
	messenger := slack.NewClient(api, logger)
	sock := socketmode.New(api)

	// Capability providers
	registry := tools.NewRegistry(
		tools.NewSearchClient(cfg.Providers.Search.URL, cfg.Providers.Search.APIKey, timeout, logger),
		tools.NewResearchClient(cfg.Providers.Research.URL, cfg.Providers.Research.APIKey, researchTimeout, logger),
		tools.NewScrapeClient(cfg.Providers.Scrape.URL, timeout, logger),
		tools.NewImageClient(aiClient, cfg.OpenAI.ImageModel, researchTimeout, logger),
		messenger,
		logger,
	)

	gate := moderation.NewGate(aiClient, timeout, logger)
	invoker := llm.NewInvoker(aiClient, store, cfg.OpenAI.DefaultModel, timeout, logger)

	orchestrator := bot.NewOrchestrator(
		messenger,
		store,
		gate,
		invoker,
		registry,
		cfg.Bot.MemoryWindow,
		cfg.Bot.TypingReaction,
		logger,
	)

	// Initialize and start the bot
	b := bot.New(sock, messenger, store, orchestrator, identity.UserID, cfg.Bot.PingReaction, logger)
	logger.Info("Symphony is listening", zap.String("user_id", identity.UserID))
	if err := b.Run(context.Background()); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
