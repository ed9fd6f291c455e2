// Package config loads indexer configuration from defaults, an
// optional .indexchat.yaml file, and environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/indexchat/indexchat/internal/chunk"
	ierr "github.com/indexchat/indexchat/internal/errors"
)

// Provider names accepted in embeddings.provider.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Config is the complete indexer configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Watch      WatchConfig      `yaml:"watch"`
	Index      IndexConfig      `yaml:"index"`
	LogLevel   string           `yaml:"log_level"`
}

// PathsConfig locates the watched directory and the index database.
type PathsConfig struct {
	// InputDir is the flat directory whose files get indexed.
	InputDir string `yaml:"input_dir"`
	// IndexPath is the SQLite database file for the vector index.
	IndexPath string `yaml:"index_path"`
}

// ChunkingConfig sets the token window for document splitting.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingsConfig selects and parameterizes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" or "static". Empty auto-detects: openai
	// when OPENAI_API_KEY is set, static otherwise.
	Provider string `yaml:"provider"`

	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
	AudioModel string `yaml:"audio_model"`

	// HFEndpoint overrides the Hugging Face inference endpoint.
	HFEndpoint string `yaml:"hf_endpoint"`

	// CacheSize bounds the in-memory chunk embedding cache.
	CacheSize int `yaml:"cache_size"`

	// Keys come from the environment only, never from YAML.
	OpenAIKey string `yaml:"-"`
	HFToken   string `yaml:"-"`
}

// WatchConfig tunes the file watcher and media sampling.
type WatchConfig struct {
	// Debounce is the quiet period after the last filesystem event
	// before a rebuild starts.
	Debounce string `yaml:"debounce"`
	// FrameInterval is the spacing between sampled video frames.
	FrameInterval string `yaml:"frame_interval"`
}

// IndexConfig tunes the index store.
type IndexConfig struct {
	// DisableANN forces linear search, skipping the graph sub-indexes.
	DisableANN bool `yaml:"disable_ann"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:  "input",
			IndexPath: filepath.Join("index", "index.db"),
		},
		Chunking: ChunkingConfig{
			Size:    chunk.DefaultSize,
			Overlap: chunk.DefaultOverlap,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			TextModel:  "text-embedding-3-large",
			ImageModel: "openai/clip-vit-base-patch32",
			AudioModel: "laion/clap-htsat-unfused",
			CacheSize:  1000,
		},
		Watch: WatchConfig{
			Debounce:      "2s",
			FrameInterval: "10s",
		},
		Index: IndexConfig{
			DisableANN: false,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration for the given working directory:
// defaults, then .indexchat.yaml if present, then environment
// overrides, then validation.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile merges .indexchat.yaml or .indexchat.yml when present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".indexchat.yaml", ".indexchat.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return ierr.ConfigError("failed to read config file", err).
				WithDetail("path", path)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return ierr.ConfigError("failed to parse config file", err).
				WithDetail("path", path)
		}
		c.mergeWith(&parsed)
		return nil
	}
	// No config file is fine, defaults apply.
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.InputDir != "" {
		c.Paths.InputDir = other.Paths.InputDir
	}
	if other.Paths.IndexPath != "" {
		c.Paths.IndexPath = other.Paths.IndexPath
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.TextModel != "" {
		c.Embeddings.TextModel = other.Embeddings.TextModel
	}
	if other.Embeddings.ImageModel != "" {
		c.Embeddings.ImageModel = other.Embeddings.ImageModel
	}
	if other.Embeddings.AudioModel != "" {
		c.Embeddings.AudioModel = other.Embeddings.AudioModel
	}
	if other.Embeddings.HFEndpoint != "" {
		c.Embeddings.HFEndpoint = other.Embeddings.HFEndpoint
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.FrameInterval != "" {
		c.Watch.FrameInterval = other.Watch.FrameInterval
	}

	if other.Index.DisableANN {
		c.Index.DisableANN = true
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies INDEXCHAT_* and credential variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INDEXCHAT_INPUT_DIR"); v != "" {
		c.Paths.InputDir = v
	}
	if v := os.Getenv("INDEXCHAT_INDEX_PATH"); v != "" {
		c.Paths.IndexPath = v
	}
	if v := os.Getenv("INDEXCHAT_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("INDEXCHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("INDEXCHAT_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("INDEXCHAT_FRAME_INTERVAL"); v != "" {
		c.Watch.FrameInterval = v
	}
	if v := os.Getenv("INDEXCHAT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.Size = n
		}
	}
	if v := os.Getenv("INDEXCHAT_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("INDEXCHAT_DISABLE_ANN"); v != "" {
		c.Index.DisableANN = strings.ToLower(v) == "true" || v == "1"
	}

	c.Embeddings.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.Embeddings.HFToken = os.Getenv("HF_API_TOKEN")
}

// ResolveProvider returns the effective provider name after
// auto-detection.
func (c *Config) ResolveProvider() string {
	if c.Embeddings.Provider != "" {
		return strings.ToLower(c.Embeddings.Provider)
	}
	if c.Embeddings.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderStatic
}

// Debounce returns the parsed watch debounce window.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// FrameInterval returns the parsed video frame sampling interval.
func (c *Config) FrameInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.FrameInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Validate checks the configuration and returns a structured error
// for the first violation found.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return ierr.ConfigError("paths.input_dir must not be empty", nil)
	}
	if c.Paths.IndexPath == "" {
		return ierr.ConfigError("paths.index_path must not be empty", nil)
	}

	// The chunker constructor owns the window arithmetic rules.
	if _, err := chunk.New(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return err
	}

	switch p := strings.ToLower(c.Embeddings.Provider); p {
	case "", ProviderOpenAI, ProviderStatic:
	default:
		return ierr.ConfigError("embeddings.provider must be 'openai', 'static', or empty", nil).
			WithDetail("provider", p)
	}

	if c.ResolveProvider() == ProviderOpenAI && c.Embeddings.OpenAIKey == "" {
		return ierr.New(ierr.ErrCodeCredentialsMissing,
			"OPENAI_API_KEY is required when embeddings.provider is 'openai'", nil)
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return ierr.ConfigError("watch.debounce is not a valid duration", nil).
			WithDetail("value", c.Watch.Debounce)
	}
	if _, err := time.ParseDuration(c.Watch.FrameInterval); err != nil {
		return ierr.ConfigError("watch.frame_interval is not a valid duration", nil).
			WithDetail("value", c.Watch.FrameInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return ierr.ConfigError("log_level must be 'debug', 'info', 'warn', or 'error'", nil).
			WithDetail("value", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ierr.ConfigError("failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ierr.ConfigError("failed to write config file", err).
			WithDetail("path", path)
	}
	return nil
}
