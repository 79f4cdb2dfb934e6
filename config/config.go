package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration errors
var (
	ErrMissingCredential = errors.New("missing language model credential")
	ErrInvalidProvider   = errors.New("llm.provider must be 'gemini' or 'openai'")
	ErrInvalidEngine     = errors.New("browser.engine must be 'browser' or 'http'")
	ErrInvalidBudget     = errors.New("search.default_budget must be positive")
	ErrInvalidTopN       = errors.New("search.top_n must be at least 1")
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Page rendering engines
const (
	EngineBrowser = "browser"
	EngineHTTP    = "http"
)

// Config holds all configuration for the application
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// LLMConfig holds language model settings
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Temperature       float64       `mapstructure:"temperature"`
}

// CredentialEnv names the environment variable that carries the provider key
func (c *LLMConfig) CredentialEnv() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

// BrowserConfig holds page rendering settings
type BrowserConfig struct {
	Engine         string        `mapstructure:"engine"`
	Bin            string        `mapstructure:"bin"`
	Headless       bool          `mapstructure:"headless"`
	UserAgent      string        `mapstructure:"user_agent"`
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
}

// SearchConfig holds query pipeline settings
type SearchConfig struct {
	DefaultBudget float64 `mapstructure:"default_budget"`
	TopN          int     `mapstructure:"top_n"`
	MaxCards      int     `mapstructure:"max_cards"`
	SitesFile     string  `mapstructure:"sites_file"`
}

// DatabaseConfig holds the optional observation store
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Enabled returns true when a database URL is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	APIKey         string   `mapstructure:"api_key"`
	MaxWorkers     int      `mapstructure:"max_workers"`
}

// WatchConfig holds scheduled query settings
type WatchConfig struct {
	Schedule      string        `mapstructure:"schedule"`
	Queries       []string      `mapstructure:"queries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealscout/")

	v.SetEnvPrefix("DEALSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("database.url", "DEALSCOUT_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("unable to bind database url: %w", err)
	}
	if err := v.BindEnv("server.port", "DEALSCOUT_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("unable to bind server port: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.LLM.Provider = strings.ToLower(strings.TrimSpace(config.LLM.Provider))
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv(config.LLM.CredentialEnv())
	}
	if config.LLM.Model == "" {
		config.LLM.Model = defaultModel(config.LLM.Provider)
	}

	if err := config.Validate(); err != nil {
		return &config, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("browser.engine", EngineBrowser)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.adapter_timeout", "60s")

	v.SetDefault("search.default_budget", 50000)
	v.SetDefault("search.top_n", 3)
	v.SetDefault("search.max_cards", 20)
	v.SetDefault("search.sites_file", "")

	v.SetDefault("database.url", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 1)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_workers", 2)

	// Every 12 hours, at 00:00 and 12:00
	v.SetDefault("watch.schedule", "0 0 */12 * * *")
	v.SetDefault("watch.queries", []string{})
	v.SetDefault("watch.retry_interval", "5m")
	v.SetDefault("watch.max_retries", 5)
}

// DefaultUserAgent is sent by both page engines
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-1.5-flash"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LLM.Provider != ProviderGemini && c.LLM.Provider != ProviderOpenAI {
		return fmt.Errorf("%w, got: %s", ErrInvalidProvider, c.LLM.Provider)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: %s not found in environment variables", ErrMissingCredential, c.LLM.CredentialEnv())
	}

	if c.Browser.Engine != EngineBrowser && c.Browser.Engine != EngineHTTP {
		return fmt.Errorf("%w, got: %s", ErrInvalidEngine, c.Browser.Engine)
	}

	if c.Search.DefaultBudget <= 0 {
		return ErrInvalidBudget
	}

	if c.Search.TopN < 1 {
		return ErrInvalidTopN
	}

	return nil
}
