// Package config loads sitechat settings from defaults, an optional config
// file and SITECHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/perbu/sitechat/pkg/generator"
	"github.com/perbu/sitechat/pkg/loader"
	"github.com/perbu/sitechat/pkg/rag"
	"github.com/perbu/sitechat/pkg/scraper"
)

// Config holds all settings
type Config struct {
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ScraperConfig controls page fetching and text extraction
type ScraperConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	MaxChars      int           `mapstructure:"max_chars"`
	MinLineLength int           `mapstructure:"min_line_length"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	Workers       int           `mapstructure:"workers"`
	StripChrome   bool          `mapstructure:"strip_chrome"`
	Paths         []string      `mapstructure:"paths"`
}

// ChunkerConfig controls corpus chunking
type ChunkerConfig struct {
	Size int `mapstructure:"size"`
}

// RetrievalConfig controls lexical scoring
type RetrievalConfig struct {
	TopK          int `mapstructure:"top_k"`
	PhraseBonus   int `mapstructure:"phrase_bonus"`
	WordBonus     int `mapstructure:"word_bonus"`
	MinWordLength int `mapstructure:"min_word_length"`
}

// LLMConfig controls the generation service
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects and sizes the answer cache
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is used when the cache backend is redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// TelemetryConfig controls the metrics endpoint
type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// keyEnvFallbacks are read when llm.api_key is not set.
var keyEnvFallbacks = []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY"}

func setDefaults(v *viper.Viper) {
	fetch := scraper.DefaultFetcherConfig()
	v.SetDefault("scraper.timeout", fetch.Timeout)
	v.SetDefault("scraper.user_agent", fetch.UserAgent)
	v.SetDefault("scraper.max_chars", fetch.MaxChars)
	v.SetDefault("scraper.min_line_length", fetch.MinLineLength)
	v.SetDefault("scraper.max_body_bytes", fetch.MaxBodyBytes)
	v.SetDefault("scraper.workers", scraper.DefaultWorkers)
	v.SetDefault("scraper.strip_chrome", false)
	v.SetDefault("scraper.paths", scraper.DefaultPaths)

	v.SetDefault("chunker.size", loader.DefaultChunkSize)

	w := rag.DefaultWeights()
	v.SetDefault("retrieval.top_k", rag.DefaultTopK)
	v.SetDefault("retrieval.phrase_bonus", w.PhraseBonus)
	v.SetDefault("retrieval.word_bonus", w.WordBonus)
	v.SetDefault("retrieval.min_word_length", w.MinWordLength)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", generator.DefaultBaseURL)
	v.SetDefault("llm.model", generator.DefaultModel)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.timeout", generator.DefaultTimeout)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "sitechat:answer:")

	v.SetDefault("telemetry.metrics_addr", "")
}

// Load reads the configuration. An empty path searches for sitechat.{yaml,json,toml}
// in . and ./config; a missing file is not an error in that case.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sitechat")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SITECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		for _, name := range keyEnvFallbacks {
			if key := strings.TrimSpace(os.Getenv(name)); key != "" {
				cfg.LLM.APIKey = key
				break
			}
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be positive")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be positive, got %d", c.Scraper.Workers)
	}
	if c.Scraper.MaxChars <= 0 {
		return fmt.Errorf("scraper.max_chars must be positive, got %d", c.Scraper.MaxChars)
	}
	if c.Scraper.MinLineLength < 0 {
		return fmt.Errorf("scraper.min_line_length must be non-negative, got %d", c.Scraper.MinLineLength)
	}
	if len(c.Scraper.Paths) == 0 {
		return fmt.Errorf("scraper.paths must not be empty")
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	switch c.Cache.Backend {
	case CacheMemory:
		if c.Cache.Size < 0 {
			return fmt.Errorf("cache.size must be non-negative, got %d", c.Cache.Size)
		}
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	return nil
}

// FetcherConfig converts the scraper section.
func (c Config) FetcherConfig() scraper.FetcherConfig {
	return scraper.FetcherConfig{
		Timeout:       c.Scraper.Timeout,
		UserAgent:     c.Scraper.UserAgent,
		MaxChars:      c.Scraper.MaxChars,
		MinLineLength: c.Scraper.MinLineLength,
		MaxBodyBytes:  c.Scraper.MaxBodyBytes,
		StripChrome:   c.Scraper.StripChrome,
	}
}

// Retriever builds the lexical retriever from the retrieval section.
func (c Config) Retriever() *rag.LexicalRetriever {
	return &rag.LexicalRetriever{
		TopK: c.Retrieval.TopK,
		Weights: rag.Weights{
			PhraseBonus:   c.Retrieval.PhraseBonus,
			WordBonus:     c.Retrieval.WordBonus,
			MinWordLength: c.Retrieval.MinWordLength,
		},
	}
}

// OpenAIConfig converts the llm section.
func (c Config) OpenAIConfig() generator.OpenAIConfig {
	return generator.OpenAIConfig{
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}
