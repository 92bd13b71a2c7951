package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{
			APIKey: "test-key",
		},
		Corpus: CorpusConfig{
			PrimaryCSV:   "data/faq.csv",
			SecondaryCSV: "data/tickets.csv",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_MissingCorpusPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Corpus.SecondaryCSV = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing corpus path")
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.FallbackThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for fallback threshold above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %q", cfg.Embedding.Model)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.NProbe != 4 {
		t.Errorf("expected NProbe=4, got %d", cfg.Retrieval.NProbe)
	}
	if cfg.Retrieval.FallbackThreshold != 0.65 {
		t.Errorf("expected FallbackThreshold=0.65, got %g", cfg.Retrieval.FallbackThreshold)
	}
	if cfg.Retrieval.MaxClusters != 256 {
		t.Errorf("expected MaxClusters=256, got %d", cfg.Retrieval.MaxClusters)
	}
	if cfg.Retrieval.KMeansIterations != 25 {
		t.Errorf("expected KMeansIterations=25, got %d", cfg.Retrieval.KMeansIterations)
	}
	if cfg.Cache.LRUSize != 4096 {
		t.Errorf("expected LRUSize=4096, got %d", cfg.Cache.LRUSize)
	}
	if cfg.Cache.TTLSec != 86400 {
		t.Errorf("expected TTLSec=86400, got %d", cfg.Cache.TTLSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Retrieval: RetrievalConfig{
			TopK:              5,
			NProbe:            8,
			FallbackThreshold: 0.5,
			MaxClusters:       64,
		},
		Cache: CacheConfig{LRUSize: 128, TTLSec: 60},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.FallbackThreshold != 0.5 {
		t.Errorf("expected FallbackThreshold=0.5, got %g", cfg.Retrieval.FallbackThreshold)
	}
	if cfg.Cache.LRUSize != 128 {
		t.Errorf("expected LRUSize=128, got %d", cfg.Cache.LRUSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SUPPORTRAG_TEST_KEY", "sk-abc")

	in := []byte("api_key: ${SUPPORTRAG_TEST_KEY}\nmodel: ${SUPPORTRAG_TEST_MODEL:-text-embedding-3-small}\n")
	out := string(expandEnvVars(in))

	want := "api_key: sk-abc\nmodel: text-embedding-3-small\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}
