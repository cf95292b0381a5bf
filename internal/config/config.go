// Package config provides configuration management for the literature review service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PubMed parser variants.
const (
	// ParserOfficial parses the official PubMed efetch schema (PubmedArticle).
	ParserOfficial = "official"
	// ParserGeneric parses a generic lowercase "article" record shape.
	ParserGeneric = "generic"
)

// Config holds all configuration for the literature review service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for phrase expansion, ranking and drafting.
	LLM LLMConfig `mapstructure:"llm"`
	// PaperSources contains paper source configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Pipeline contains review pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// IdleTimeout is the maximum duration to keep idle connections open.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from LITREVIEW_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from LITREVIEW_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// PaperSourcesConfig holds configuration for all paper sources.
type PaperSourcesConfig struct {
	// PubMed contains PubMed E-utilities settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Scholar contains Google Scholar scraping settings.
	Scholar ScholarConfig `mapstructure:"scholar"`
}

// PubMedConfig holds configuration for the PubMed metadata search client.
type PubMedConfig struct {
	// Enabled controls whether PubMed search is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the NCBI API key (loaded from LITREVIEW_PAPER_SOURCES_PUBMED_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// FetchConcurrency is the number of concurrent efetch requests per phrase.
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
	// ThrottleRetries is how many times a throttled esearch is retried.
	ThrottleRetries int `mapstructure:"throttle_retries"`
	// ThrottleDelay is the fixed delay between throttled esearch retries.
	ThrottleDelay time.Duration `mapstructure:"throttle_delay"`
	// PhrasePause is the pause between sequential phrase searches.
	PhrasePause time.Duration `mapstructure:"phrase_pause"`
	// Parser selects the efetch record parser ("official" or "generic").
	Parser string `mapstructure:"parser"`
}

// ScholarConfig holds configuration for the scholar discovery client.
type ScholarConfig struct {
	// Enabled controls whether scholar discovery is used.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the scholar search base URL.
	BaseURL string `mapstructure:"base_url"`
	// CrossRefBaseURL is the PubMed website base URL used for cross-referencing titles.
	CrossRefBaseURL string `mapstructure:"cross_ref_base_url"`
	// Timeout is the timeout for page fetches.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// ListingPages is the number of result pages to scrape.
	ListingPages int `mapstructure:"listing_pages"`
	// PageSize is the number of results per listing page.
	PageSize int `mapstructure:"page_size"`
}

// PipelineConfig holds review pipeline settings.
type PipelineConfig struct {
	// ExactTopicResults is the esearch retmax for the initial raw-topic pass.
	ExactTopicResults int `mapstructure:"exact_topic_results"`
	// RunTimeout bounds a single review run end to end.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// MaxTopicLength is the maximum accepted topic length in characters.
	MaxTopicLength int `mapstructure:"max_topic_length"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("LITREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/litreview")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("LITREVIEW_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("LITREVIEW_LLM_ANTHROPIC_API_KEY")
	cfg.PaperSources.PubMed.APIKey = os.Getenv("LITREVIEW_PAPER_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.7)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4-turbo")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Paper sources defaults - PubMed
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("paper_sources.pubmed.fetch_concurrency", 3)
	v.SetDefault("paper_sources.pubmed.throttle_retries", 3)
	v.SetDefault("paper_sources.pubmed.throttle_delay", "1s")
	v.SetDefault("paper_sources.pubmed.phrase_pause", "300ms")
	v.SetDefault("paper_sources.pubmed.parser", ParserOfficial)

	// Paper sources defaults - Scholar
	v.SetDefault("paper_sources.scholar.enabled", true)
	v.SetDefault("paper_sources.scholar.base_url", "https://scholar.google.com")
	v.SetDefault("paper_sources.scholar.cross_ref_base_url", "https://pubmed.ncbi.nlm.nih.gov")
	v.SetDefault("paper_sources.scholar.timeout", "30s")
	v.SetDefault("paper_sources.scholar.rate_limit", 2.0)
	v.SetDefault("paper_sources.scholar.listing_pages", 4)
	v.SetDefault("paper_sources.scholar.page_size", 10)

	// Pipeline defaults
	v.SetDefault("pipeline.exact_topic_results", 20)
	v.SetDefault("pipeline.run_timeout", "20m")
	v.SetDefault("pipeline.max_topic_length", 500)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires LITREVIEW_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires LITREVIEW_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	// Validate PubMed config
	if c.PaperSources.PubMed.Enabled {
		if c.PaperSources.PubMed.BaseURL == "" {
			return fmt.Errorf("pubmed base_url is required")
		}
		if c.PaperSources.PubMed.FetchConcurrency <= 0 {
			return fmt.Errorf("pubmed fetch_concurrency must be positive")
		}
		switch c.PaperSources.PubMed.Parser {
		case ParserOfficial, ParserGeneric:
		default:
			return fmt.Errorf("invalid pubmed parser: %q", c.PaperSources.PubMed.Parser)
		}
	}

	// Validate Scholar config
	if c.PaperSources.Scholar.Enabled {
		if c.PaperSources.Scholar.BaseURL == "" {
			return fmt.Errorf("scholar base_url is required")
		}
		if c.PaperSources.Scholar.ListingPages <= 0 {
			return fmt.Errorf("scholar listing_pages must be positive")
		}
		if c.PaperSources.Scholar.PageSize <= 0 {
			return fmt.Errorf("scholar page_size must be positive")
		}
	}

	// Validate pipeline config
	if c.Pipeline.ExactTopicResults <= 0 {
		return fmt.Errorf("pipeline exact_topic_results must be positive")
	}
	if c.Pipeline.MaxTopicLength <= 0 {
		return fmt.Errorf("pipeline max_topic_length must be positive")
	}

	return nil
}
