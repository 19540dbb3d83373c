package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete biaslens configuration
type Config struct {
	Corpus       CorpusConfig       `yaml:"corpus" mapstructure:"corpus"`
	Chain        string             `yaml:"chain" mapstructure:"chain"` // Preprocessing preset or step list
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Ranking      RankingConfig      `yaml:"ranking" mapstructure:"ranking"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// CorpusConfig locates the labeled article corpus
type CorpusConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`               // Directory holding jsons/ and splits/
	Scheme     string `yaml:"scheme" mapstructure:"scheme"`           // Split scheme under splits/ (random, media)
	TrainSplit string `yaml:"train_split" mapstructure:"train_split"` // Split used for training
	TestSplit  string `yaml:"test_split" mapstructure:"test_split"`   // Split used for evaluation
}

// CacheConfig controls where trained artifacts are kept
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"` // 0 keeps entries until invalidated
}

// SearchConfig controls the full-text index
type SearchConfig struct {
	IndexPath  string `yaml:"index_path" mapstructure:"index_path"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// RankingConfig controls bias-aware re-ranking
type RankingConfig struct {
	Boost float64 `yaml:"boost" mapstructure:"boost"`
	Limit int     `yaml:"limit" mapstructure:"limit"`
}

// HTTPConfig controls article fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig controls worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig controls per-domain fetch rates
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LLMConfig configures the optional LLM second opinion
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai or "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls terminal output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Width   int  `yaml:"width" mapstructure:"width"`
	JSON    bool `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:       "data",
			Scheme:     "random",
			TrainSplit: "train",
			TestSplit:  "test",
		},
		Chain: "vanilla",
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultDataDir("cache"),
			MemoryTTL: 30 * time.Minute,
		},
		Search: SearchConfig{
			IndexPath:  filepath.Join(defaultDataDir("index"), "search.db"),
			MaxResults: 1000,
		},
		Ranking: RankingConfig{
			Boost: 1.1,
			Limit: 10,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "biaslens/0.1 (+https://github.com/ppiankov/biaslens)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 300,
		},
		Output: OutputConfig{
			Width: 80,
		},
	}
}

func defaultDataDir(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".biaslens", sub)
	}
	return filepath.Join(home, ".biaslens", sub)
}
