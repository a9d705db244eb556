package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docpipe service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Budget    BudgetConfig    `yaml:"budget"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds the ops HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	BatchLimit          int    `yaml:"batch_limit"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	CacheMaxEntries     int    `yaml:"cache_max_entries"`
	CacheMaxAgeSec      int    `yaml:"cache_max_age_sec"`
	MaxRetries          int    `yaml:"max_retries"`
	RetryBaseDelayMS    int    `yaml:"retry_base_delay_ms"`
}

// ChunkerConfig holds document chunking defaults.
type ChunkerConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// BudgetConfig holds the hard resource budgets enforced before and during
// document analysis.
type BudgetConfig struct {
	TokenBudget      int   `yaml:"token_budget"`
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
	MaxPages         int   `yaml:"max_pages"`
}

// IngestionConfig holds bootstrap ingestion worker settings.
type IngestionConfig struct {
	DataDir            string   `yaml:"data_dir"`
	Sources            []string `yaml:"sources"`
	BatchSize          int      `yaml:"batch_size"`
	BatchDelayMS       int      `yaml:"batch_delay_ms"`
	ErrorRateThreshold float64  `yaml:"error_rate_threshold"`
	SourceConcurrency  int      `yaml:"source_concurrency"`
}

// RetrievalConfig holds two-tier retrieval settings.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "docpipe:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.BatchLimit <= 0 {
		c.Embedding.BatchLimit = 128
	}
	if c.Embedding.CacheMaxEntries <= 0 {
		c.Embedding.CacheMaxEntries = 10000
	}
	if c.Embedding.CacheMaxAgeSec <= 0 {
		c.Embedding.CacheMaxAgeSec = 3600
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.RetryBaseDelayMS <= 0 {
		c.Embedding.RetryBaseDelayMS = 1000
	}
	if c.Chunker.MaxTokens <= 0 {
		c.Chunker.MaxTokens = 500
	}
	if c.Chunker.OverlapTokens < 0 {
		c.Chunker.OverlapTokens = 0
	} else if c.Chunker.OverlapTokens == 0 {
		c.Chunker.OverlapTokens = 50
	}
	if c.Budget.TokenBudget <= 0 {
		c.Budget.TokenBudget = 100000
	}
	if c.Budget.MaxFileSizeBytes <= 0 {
		c.Budget.MaxFileSizeBytes = 10 << 20
	}
	if c.Budget.MaxPages <= 0 {
		c.Budget.MaxPages = 200
	}
	if c.Ingestion.BatchSize <= 0 {
		c.Ingestion.BatchSize = 128
	}
	if c.Ingestion.BatchDelayMS <= 0 {
		c.Ingestion.BatchDelayMS = 1000
	}
	if c.Ingestion.ErrorRateThreshold <= 0 {
		c.Ingestion.ErrorRateThreshold = 0.10
	}
	if c.Ingestion.SourceConcurrency <= 0 {
		c.Ingestion.SourceConcurrency = 2
	}
	if len(c.Ingestion.Sources) == 0 {
		c.Ingestion.Sources = []string{"cuad", "contract_nli", "bonterms", "commonaccord"}
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Retrieval.MinScore <= 0 {
		c.Retrieval.MinScore = 0.35
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.BatchLimit > 128 {
		return fmt.Errorf("embedding.batch_limit must not exceed the provider ceiling of 128, got %d", c.Embedding.BatchLimit)
	}
	if c.Chunker.OverlapTokens >= c.Chunker.MaxTokens {
		return fmt.Errorf("chunker.overlap_tokens (%d) must be below chunker.max_tokens (%d)",
			c.Chunker.OverlapTokens, c.Chunker.MaxTokens)
	}
	if c.Ingestion.ErrorRateThreshold >= 1 {
		return fmt.Errorf("ingestion.error_rate_threshold must be below 1, got %g", c.Ingestion.ErrorRateThreshold)
	}
	if c.Ingestion.DataDir == "" {
		return fmt.Errorf("ingestion.data_dir is required")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} placeholders with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(match[2 : len(match)-1])
		return []byte(os.Getenv(name))
	})
}

// findConfigPath locates the config file for the environment, checking the
// CONFIG_PATH variable, the working directory, and the repo root.
func findConfigPath(env string) string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	name := fmt.Sprintf("config.%s.yaml", env)
	candidates := []string{
		filepath.Join("configs", name),
		name,
	}

	// Fall back to the source tree location for `go run` from subdirectories.
	if _, file, _, ok := runtime.Caller(0); ok {
		root := filepath.Dir(filepath.Dir(filepath.Dir(file)))
		candidates = append(candidates, filepath.Join(root, "configs", name))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[0]
}

// TrimmedSources returns the configured source names with blanks removed.
func (c *Config) TrimmedSources() []string {
	out := make([]string, 0, len(c.Ingestion.Sources))
	for _, s := range c.Ingestion.Sources {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
