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

// Config holds the supportrag API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Cache     CacheConfig     `yaml:"cache"`
	Build     BuildConfig     `yaml:"build"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// RetrievalConfig holds search and routing settings.
type RetrievalConfig struct {
	TopK              int     `yaml:"top_k"`
	NProbe            int     `yaml:"nprobe"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
	MaxClusters       int     `yaml:"max_clusters"`
	KMeansIterations  int     `yaml:"kmeans_iterations"`
	KMeansEpsilon     float64 `yaml:"kmeans_epsilon"`
	Seed              int64   `yaml:"seed"`
}

// CorpusConfig holds corpus input and artifact locations.
type CorpusConfig struct {
	PrimaryCSV   string `yaml:"primary_csv"`
	SecondaryCSV string `yaml:"secondary_csv"`
	ArtifactDir  string `yaml:"artifact_dir"`
}

// CacheConfig holds embedding cache settings. With no Redis addrs the cache
// falls back to an in-process LRU.
type CacheConfig struct {
	RedisAddrs    []string `yaml:"redis_addrs"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	LRUSize       int      `yaml:"lru_size"`
	TTLSec        int      `yaml:"ttl_sec"`
}

// BuildConfig holds corpus rebuild settings.
type BuildConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	PoolSize  int `yaml:"pool_size"`
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	if c.Retrieval.NProbe <= 0 {
		c.Retrieval.NProbe = 4
	}
	if c.Retrieval.FallbackThreshold <= 0 {
		c.Retrieval.FallbackThreshold = 0.65
	}
	if c.Retrieval.MaxClusters <= 0 {
		c.Retrieval.MaxClusters = 256
	}
	if c.Retrieval.KMeansIterations <= 0 {
		c.Retrieval.KMeansIterations = 25
	}
	if c.Retrieval.KMeansEpsilon <= 0 {
		c.Retrieval.KMeansEpsilon = 1e-4
	}
	if c.Cache.LRUSize <= 0 {
		c.Cache.LRUSize = 4096
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 24 * 60 * 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Retrieval.FallbackThreshold >= 1 {
		return fmt.Errorf("retrieval.fallback_threshold must be below 1, got %g", c.Retrieval.FallbackThreshold)
	}
	if c.Corpus.PrimaryCSV == "" || c.Corpus.SecondaryCSV == "" {
		return fmt.Errorf("corpus.primary_csv and corpus.secondary_csv are required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
