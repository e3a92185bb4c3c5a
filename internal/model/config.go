package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all verisum settings
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Evidence  EvidenceConfig  `yaml:"evidence" mapstructure:"evidence"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Answer    AnswerConfig    `yaml:"answer" mapstructure:"answer"`
	Claims    ClaimsConfig    `yaml:"claims" mapstructure:"claims"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider" validate:"oneof=openai gemini hash"`
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `yaml:"dimensions,omitempty" mapstructure:"dimensions" validate:"gte=0"`
}

// IndexConfig holds vector index and retrieval settings
type IndexConfig struct {
	ChunkSize int     `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gt=0"`
	SearchK   int     `yaml:"search_k" mapstructure:"search_k" validate:"gt=0"`
	MinScore  float64 `yaml:"min_score" mapstructure:"min_score" validate:"gt=0,lt=1"`
}

// CacheConfig holds document and query cache settings
type CacheConfig struct {
	Dir             string        `yaml:"dir" mapstructure:"dir"`
	Driver          string        `yaml:"driver" mapstructure:"driver" validate:"oneof=disk badger memory"`
	DocumentTTL     time.Duration `yaml:"document_ttl" mapstructure:"document_ttl" validate:"gt=0"`
	QueryTTL        time.Duration `yaml:"query_ttl" mapstructure:"query_ttl" validate:"gt=0"`
	MaxDurableBytes int           `yaml:"max_durable_bytes" mapstructure:"max_durable_bytes" validate:"gt=0"`
}

// EvidenceConfig holds evidence source settings
type EvidenceConfig struct {
	Domain            bool                `yaml:"domain" mapstructure:"domain"`
	Encyclopedia      bool                `yaml:"encyclopedia" mapstructure:"encyclopedia"`
	CheckSources      bool                `yaml:"check_sources" mapstructure:"check_sources"` // Verify model-suggested links
	FactCheckAPIKey   string              `yaml:"fact_check_api_key,omitempty" mapstructure:"fact_check_api_key"`
	WikipediaAPI      string              `yaml:"wikipedia_api" mapstructure:"wikipedia_api" validate:"url"`
	FactCheckAPI      string              `yaml:"fact_check_api" mapstructure:"fact_check_api" validate:"url"`
	Timeout           time.Duration       `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64             `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int                 `yaml:"burst" mapstructure:"burst" validate:"gt=0"`
	HostRates         []HostRate          `yaml:"host_rates,omitempty" mapstructure:"host_rates" validate:"dive"`
	ExtraDomains      map[string][]string `yaml:"extra_domains,omitempty" mapstructure:"extra_domains"` // category -> domains
}

// HostRate overrides the evidence rate limit for one host
type HostRate struct {
	Host              string  `yaml:"host" mapstructure:"host" validate:"required,hostname"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst,omitempty" mapstructure:"burst" validate:"gte=0"`
}

// LLMConfig configures the optional analysis provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai anthropic claude ollama"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnswerConfig configures question answering over retrieved passages
type AnswerConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	History   int    `yaml:"history" mapstructure:"history"` // Recent questions kept per process
}

// ClaimsConfig configures the claim store
type ClaimsConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver" validate:"oneof=file badger"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// WorkerConfig sizes the batch worker pool
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gt=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Env   string `yaml:"env" mapstructure:"env" validate:"oneof=prod local dev"`
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".verisum")

	return Config{
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Index: IndexConfig{
			ChunkSize: 50,
			SearchK:   7,
			MinScore:  0.5,
		},
		Cache: CacheConfig{
			Dir:             filepath.Join(base, "cache"),
			Driver:          "disk",
			DocumentTTL:     time.Hour,
			QueryTTL:        30 * time.Minute,
			MaxDurableBytes: 5 * 1024 * 1024,
		},
		Evidence: EvidenceConfig{
			Domain:            true,
			Encyclopedia:      true,
			CheckSources:      true,
			WikipediaAPI:      "https://en.wikipedia.org/w/api.php",
			FactCheckAPI:      "https://factchecktools.googleapis.com/v1alpha1/claims:search",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 2,
			Burst:             10,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 500,
		},
		Answer: AnswerConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
			History:   10,
		},
		Claims: ClaimsConfig{
			Driver: "file",
			Path:   filepath.Join(base, "claims.json"),
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Verisum/0.1 (+https://github.com/ppiankov/verisum)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Env:   "prod",
			Level: "info",
		},
	}
}

// ApplyDefaults fills empty fields with default values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = d.Embedding.Model
	}
	if c.Index.ChunkSize <= 0 {
		c.Index.ChunkSize = d.Index.ChunkSize
	}
	if c.Index.SearchK <= 0 {
		c.Index.SearchK = d.Index.SearchK
	}
	// Zero means unset; a negative floor is left for Validate to reject
	if c.Index.MinScore == 0 {
		c.Index.MinScore = d.Index.MinScore
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = d.Cache.Dir
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = d.Cache.Driver
	}
	if c.Cache.DocumentTTL <= 0 {
		c.Cache.DocumentTTL = d.Cache.DocumentTTL
	}
	if c.Cache.QueryTTL <= 0 {
		c.Cache.QueryTTL = d.Cache.QueryTTL
	}
	if c.Cache.MaxDurableBytes <= 0 {
		c.Cache.MaxDurableBytes = d.Cache.MaxDurableBytes
	}
	if c.Evidence.WikipediaAPI == "" {
		c.Evidence.WikipediaAPI = d.Evidence.WikipediaAPI
	}
	if c.Evidence.FactCheckAPI == "" {
		c.Evidence.FactCheckAPI = d.Evidence.FactCheckAPI
	}
	if c.Evidence.Timeout <= 0 {
		c.Evidence.Timeout = d.Evidence.Timeout
	}
	if c.Evidence.RequestsPerSecond <= 0 {
		c.Evidence.RequestsPerSecond = d.Evidence.RequestsPerSecond
	}
	if c.Evidence.Burst <= 0 {
		c.Evidence.Burst = d.Evidence.Burst
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.Answer.Model == "" {
		c.Answer.Model = d.Answer.Model
	}
	if c.Answer.MaxTokens <= 0 {
		c.Answer.MaxTokens = d.Answer.MaxTokens
	}
	if c.Answer.History <= 0 {
		c.Answer.History = d.Answer.History
	}
	if c.Claims.Driver == "" {
		c.Claims.Driver = d.Claims.Driver
	}
	if c.Claims.Path == "" {
		c.Claims.Path = d.Claims.Path
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = d.HTTP.Timeout
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = d.HTTP.UserAgent
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = d.HTTP.MaxBodyBytes
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = d.Worker.Concurrency
	}
	if c.Logging.Env == "" {
		c.Logging.Env = d.Logging.Env
	}
}

// Validate checks the configuration for correctness
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for category := range c.Evidence.ExtraDomains {
		switch DomainCategory(category) {
		case DomainReliable, DomainMixed, DomainUnreliable, DomainSatire:
		default:
			return fmt.Errorf("evidence.extra_domains: unknown category %q", category)
		}
	}
	return nil
}
