package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// openFDA
	OpenFDAURL        string `yaml:"openfda_url"`
	OpenFDAAPIKey     string `yaml:"openfda_api_key"`
	OpenFDARatePerMin int    `yaml:"openfda_rate_per_min"`

	// Index
	DataDir           string  `yaml:"data_dir"`
	Collection        string  `yaml:"collection"`
	TopK              int     `yaml:"top_k"`
	MinScore          float64 `yaml:"min_score"`
	ReplaceOnReingest bool    `yaml:"replace_on_reingest"`

	// Chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Embeddings
	EmbedBackend     string        `yaml:"embed_backend"`
	EmbedURL         string        `yaml:"embed_url"`
	EmbedModel       string        `yaml:"embed_model"`
	EmbedTimeout     time.Duration `yaml:"embed_timeout"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	OpenAIAPIKey     string        `yaml:"openai_api_key"`

	// Generation
	LLMBackend      string        `yaml:"llm_backend"`
	OllamaURL       string        `yaml:"ollama_url"`
	LLMModel        string        `yaml:"llm_model"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port: "8090",

		OpenFDAURL:        "https://api.fda.gov",
		OpenFDARatePerMin: 240,

		DataDir:    "./data",
		Collection: "drug_labels",
		TopK:       3,

		ChunkSize:    1000,
		ChunkOverlap: 200,

		EmbedBackend:     BackendOllama,
		EmbedModel:       "nomic-embed-text",
		EmbedTimeout:     30 * time.Second,
		EmbedConcurrency: 4,

		LLMBackend:     BackendOllama,
		OllamaURL:      "http://localhost:11434",
		LLMModel:       "llama3.2",
		AnthropicModel: "claude-sonnet-4-5-20250929",
		LLMTimeout:     60 * time.Second,

		WorkerCount:  4,
		MaxQueueSize: 100,

		MaxUploadBytes: 52428800, // 50MB

		JobTTL: 1 * time.Hour,
	}
}

// Load reads the YAML file named by MEDRAG_CONFIG, if any, then applies
// environment overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv("MEDRAG_CONFIG"))
}

// LoadFile overlays path (when non-empty) on the defaults, then applies
// environment overrides. A missing file is an error.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("MEDRAG_API_KEY", c.APIKey)

	c.OpenFDAURL = envOr("OPENFDA_URL", c.OpenFDAURL)
	c.OpenFDAAPIKey = envOr("OPENFDA_API_KEY", c.OpenFDAAPIKey)
	c.OpenFDARatePerMin = envInt("OPENFDA_RATE_PER_MIN", c.OpenFDARatePerMin)

	c.DataDir = envOr("DATA_DIR", c.DataDir)
	c.Collection = envOr("COLLECTION", c.Collection)
	c.TopK = envInt("TOP_K", c.TopK)
	c.MinScore = envFloat("MIN_SCORE", c.MinScore)
	c.ReplaceOnReingest = envBool("REPLACE_ON_REINGEST", c.ReplaceOnReingest)

	c.ChunkSize = envInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = envInt("CHUNK_OVERLAP", c.ChunkOverlap)

	c.EmbedBackend = strings.ToLower(envOr("EMBED_BACKEND", c.EmbedBackend))
	c.EmbedURL = envOr("EMBED_URL", c.EmbedURL)
	c.EmbedModel = envOr("EMBED_MODEL", c.EmbedModel)
	c.EmbedTimeout = envDuration("EMBED_TIMEOUT", c.EmbedTimeout)
	c.EmbedConcurrency = envInt("EMBED_CONCURRENCY", c.EmbedConcurrency)
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)

	c.LLMBackend = strings.ToLower(envOr("LLM_BACKEND", c.LLMBackend))
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.LLMModel = envOr("LLM_MODEL", c.LLMModel)
	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.LLMTimeout = envDuration("LLM_TIMEOUT", c.LLMTimeout)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)
}

func (c *Config) applyDefaults() {
	def := Defaults()
	if c.OpenFDARatePerMin <= 0 {
		c.OpenFDARatePerMin = def.OpenFDARatePerMin
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = def.ChunkOverlap
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = def.EmbedConcurrency
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = def.LLMTimeout
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = def.JobTTL
	}
}

// Validate checks settings every entry point needs.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize))
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		errs = append(errs, fmt.Errorf("MIN_SCORE must be between -1 and 1"))
	}
	switch c.EmbedBackend {
	case BackendOllama:
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" && c.EmbedURL == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBED_BACKEND %q", c.EmbedBackend))
	}
	switch c.LLMBackend {
	case BackendOllama:
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_BACKEND %q", c.LLMBackend))
	}
	return errors.Join(errs...)
}

// ValidateServer additionally checks settings the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("MEDRAG_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
