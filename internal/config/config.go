package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Quotes   QuotesConfig   `yaml:"quotes"`
	Tinkoff  TinkoffConfig  `yaml:"tinkoff"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LLMConfig struct {
	Provider       string  `yaml:"provider"` // openai, deepseek, gemini
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}

type QuotesConfig struct {
	Provider             string `yaml:"provider"` // yahoo, moex, tinkoff
	BaseURL              string `yaml:"base_url"`
	Board                string `yaml:"board"`
	MaxRequestsPerMinute int    `yaml:"max_requests_per_minute"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
}

type TinkoffConfig struct {
	Token     string `yaml:"token"`
	Sandbox   bool   `yaml:"sandbox"`
	AccountID string `yaml:"account_id"`
}

type MonitorConfig struct {
	QuoteConcurrency int    `yaml:"quote_concurrency"`
	QuoteTimeout     string `yaml:"quote_timeout"`
	RearmPolicy      string `yaml:"rearm_policy"` // level, reset
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// envOverrides are read with and without the STOCKWATCH_ prefix.
type envOverrides struct {
	LLMProvider      string `envconfig:"LLM_PROVIDER"`
	LLMModel         string `envconfig:"LLM_MODEL"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	DeepSeekAPIKey   string `envconfig:"DEEPSEEK_API_KEY"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	QuotesProvider   string `envconfig:"QUOTES_PROVIDER"`
	TinkoffToken     string `envconfig:"TINKOFF_TOKEN"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	DatabasePath     string `envconfig:"DATABASE_PATH"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

const envPrefix = "STOCKWATCH"

// Load reads the YAML file at path. A missing file is not an error; defaults
// and environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	if env.LLMProvider != "" {
		cfg.LLM.Provider = env.LLMProvider
	}
	if env.LLMModel != "" {
		cfg.LLM.Model = env.LLMModel
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)

	var key string
	switch cfg.LLM.Provider {
	case "openai":
		key = env.OpenAIAPIKey
	case "deepseek":
		key = env.DeepSeekAPIKey
	case "gemini", "":
		key = env.GeminiAPIKey
	}
	if key != "" {
		cfg.LLM.APIKey = key
	}

	if env.QuotesProvider != "" {
		cfg.Quotes.Provider = env.QuotesProvider
	}
	cfg.Quotes.Provider = strings.ToLower(cfg.Quotes.Provider)
	if env.TinkoffToken != "" {
		cfg.Tinkoff.Token = env.TinkoffToken
	}
	if env.TelegramBotToken != "" {
		cfg.Telegram.BotToken = env.TelegramBotToken
	}
	if env.DatabasePath != "" {
		cfg.Database.Path = env.DatabasePath
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.Model = "gpt-4o-mini"
		case "deepseek":
			cfg.LLM.Model = "deepseek-chat"
		default:
			cfg.LLM.Model = "gemini-2.0-flash"
		}
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "deepseek" {
		cfg.LLM.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.Quotes.Provider == "" {
		cfg.Quotes.Provider = "yahoo"
	}
	if cfg.Quotes.Board == "" {
		cfg.Quotes.Board = "TQBR"
	}
	if cfg.Quotes.MaxRequestsPerMinute == 0 {
		cfg.Quotes.MaxRequestsPerMinute = 60
	}
	if cfg.Quotes.TimeoutSeconds == 0 {
		cfg.Quotes.TimeoutSeconds = 15
	}
	if cfg.Monitor.QuoteConcurrency == 0 {
		cfg.Monitor.QuoteConcurrency = 4
	}
	if cfg.Monitor.QuoteTimeout == "" {
		cfg.Monitor.QuoteTimeout = "20s"
	}
	if cfg.Monitor.RearmPolicy == "" {
		cfg.Monitor.RearmPolicy = "level"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if len(cfg.Web.AllowedOrigins) == 0 {
		cfg.Web.AllowedOrigins = []string{"*"}
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/stock-watch.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "deepseek", "gemini":
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	switch c.Quotes.Provider {
	case "yahoo", "moex":
	case "tinkoff":
		if c.Tinkoff.Token == "" {
			return fmt.Errorf("tinkoff.token is required when quotes.provider is tinkoff")
		}
	default:
		return fmt.Errorf("unsupported quotes.provider %q", c.Quotes.Provider)
	}
	if c.Quotes.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("quotes.max_requests_per_minute must not be negative")
	}
	if c.Monitor.QuoteConcurrency < 1 {
		return fmt.Errorf("monitor.quote_concurrency must be at least 1")
	}
	if d, err := time.ParseDuration(c.Monitor.QuoteTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid monitor.quote_timeout %q", c.Monitor.QuoteTimeout)
	}
	switch c.Monitor.RearmPolicy {
	case "level", "reset":
	default:
		return fmt.Errorf("unsupported monitor.rearm_policy %q", c.Monitor.RearmPolicy)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported logging.format %q", c.Logging.Format)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) QuotesTimeout() time.Duration {
	return time.Duration(c.Quotes.TimeoutSeconds) * time.Second
}

func (c *Config) QuoteLookupTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Monitor.QuoteTimeout)
	return d
}
