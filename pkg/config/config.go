package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Slack     SlackConfig     `mapstructure:"slack"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Bot       BotConfig       `mapstructure:"bot"`
}

type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	AppToken string `mapstructure:"app_token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	ImageModel   string `mapstructure:"image_model"`
}

type ProvidersConfig struct {
	Search   SearchConfig   `mapstructure:"search"`
	Research ResearchConfig `mapstructure:"research"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
}

type SearchConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type ResearchConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ScrapeConfig struct {
	URL string `mapstructure:"url"`
}

type BotConfig struct {
	MemoryWindow   int    `mapstructure:"memory_window"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	TypingReaction string `mapstructure:"typing_reaction"`
	PingReaction   string `mapstructure:"ping_reaction"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.default_model", "gpt-4o")
	v.SetDefault("openai.image_model", "dall-e-3")
	v.SetDefault("providers.research.timeout_seconds", 120)
	v.SetDefault("bot.memory_window", 10)
	v.SetDefault("bot.timeout_seconds", 30)
	v.SetDefault("bot.typing_reaction", "typingresponse")
	v.SetDefault("bot.ping_reaction", "agahi")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("SLACK_BOT_TOKEN"); token != "" {
		config.Slack.BotToken = token
	}

	if token := v.GetString("SLACK_APP_TOKEN"); token != "" {
		config.Slack.AppToken = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if baseURL := v.GetString("AI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}

	if searchKey := v.GetString("SEARCH_API_KEY"); searchKey != "" {
		config.Providers.Search.APIKey = searchKey
	}

	if searchURL := v.GetString("SEARCH_API_URL"); searchURL != "" {
		config.Providers.Search.URL = searchURL
	}

	return &config, nil
}
