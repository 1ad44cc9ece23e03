// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads knowledgebot settings from TOML files and the
// environment.
//
// Priority, lowest first: built-in defaults, config files in the order
// given, environment variables. CLI flags are applied by the commands on
// top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/knowledgebot/ai"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a string ("300s", "5m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete knowledgebot configuration.
type Config struct {
	AI          AIConfig          `toml:"ai"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Server      ServerConfig      `toml:"server"`
	Client      ClientConfig      `toml:"client"`
	Sources     SourcesConfig     `toml:"sources"`
	Log         LogConfig         `toml:"log"`
}

// AIConfig selects the embedding model service.
type AIConfig struct {
	Provider       string           `toml:"provider" validate:"oneof=ollama openai"`
	Host           string           `toml:"host" validate:"required,url"`
	EmbeddingModel string           `toml:"embedding_model" validate:"required"`
	APIKey         string           `toml:"api_key"`
	EmbedBatchSize int              `toml:"embed_batch_size" validate:"min=1"`
	EmbedWorkers   int              `toml:"embed_workers" validate:"min=0"` // 0 picks from NumCPU
	Generation     GenerationConfig `toml:"generation"`
}

// GenerationConfig selects the answer backend. "stub" answers without a
// model by echoing the retrieved context.
type GenerationConfig struct {
	Backend     string  `toml:"backend" validate:"oneof=stub ollama openai anthropic gemini"`
	Host        string  `toml:"host" validate:"omitempty,url"` // defaults to ai.host
	Model       string  `toml:"model" validate:"required_unless=Backend stub"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=0"`
}

// ChunkingConfig sizes are in runes.
type ChunkingConfig struct {
	Size    int `toml:"size" validate:"min=1"`
	Overlap int `toml:"overlap" validate:"min=0,ltfield=Size"`
}

// RetrievalConfig holds the relevance gate settings.
type RetrievalConfig struct {
	TopK      int     `toml:"top_k" validate:"min=1"`
	Threshold float64 `toml:"threshold" validate:"min=0"`
}

// VectorStoreConfig picks the store: a postgres DSN selects pgvector,
// otherwise the embedded store lives under Path.
type VectorStoreConfig struct {
	Path string `toml:"path" validate:"required_without=DSN"`
	DSN  string `toml:"dsn"`
}

// ServerConfig configures the pipeline HTTP service.
type ServerConfig struct {
	Addr   string `toml:"addr" validate:"required"`
	Prefix string `toml:"prefix" validate:"startswith=/"`
}

// ClientConfig configures how callers reach the pipeline service.
type ClientConfig struct {
	BaseURL     string   `toml:"base_url" validate:"required,url"`
	Prefix      string   `toml:"prefix" validate:"startswith=/"`
	Timeout     Duration `toml:"timeout" validate:"gt=0"`
	Workers     int      `toml:"workers" validate:"min=1"`
	MaxAttempts int      `toml:"max_attempts" validate:"min=1"`
	RetryDelay  Duration `toml:"retry_delay" validate:"min=0"`
}

// SourcesConfig configures the caller-side source records.
type SourcesConfig struct {
	DatabaseURL string `toml:"database_url" validate:"required"`
	StorageDir  string `toml:"storage_dir" validate:"required"`
}

// LogConfig configures the default slog handler.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:       "ollama",
			Host:           "http://localhost:11434",
			EmbeddingModel: "all-minilm",
			EmbedBatchSize: 32,
			Generation: GenerationConfig{
				Backend: "stub",
				Model:   "llama3:8b-instruct",
			},
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:      3,
			Threshold: 0.5,
		},
		VectorStore: VectorStoreConfig{
			Path: "./data/vectors",
		},
		Server: ServerConfig{
			Addr:   ":8001",
			Prefix: "/api/v1/ai",
		},
		Client: ClientConfig{
			BaseURL:     "http://localhost:8001",
			Prefix:      "/api/v1/ai",
			Timeout:     Duration(300 * time.Second),
			Workers:     4,
			MaxAttempts: 1,
			RetryDelay:  Duration(time.Second),
		},
		Sources: SourcesConfig{
			DatabaseURL: "sqlite://./data/sources.db",
			StorageDir:  "./data/uploads",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the given files and the environment,
// then validates it. Later files override earlier ones; empty paths are
// skipped.
func Load(paths ...string) (*Config, error) {
	cfg := Default()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// EmbeddingAI returns the model service config for embeddings.
func (c *Config) EmbeddingAI() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithGenerationModel(""),
	)
}

// GenerationAI returns the model service config for the answer backend.
// Host and API key fall back to the embedding settings.
func (c *Config) GenerationAI() *ai.Config {
	g := c.AI.Generation
	host := g.Host
	if host == "" {
		host = c.AI.Host
	}
	key := g.APIKey
	if key == "" {
		key = c.AI.APIKey
	}
	return ai.NewConfig(
		ai.WithHost(host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(g.Model),
		ai.WithAPIKey(key),
		ai.WithTemperature(g.Temperature),
	)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.Log.Level)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
