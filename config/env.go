package config

import (
	"fmt"
	"strconv"
	"time"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("OLLAMA_HOST", &c.AI.Host)
	str("EMBEDDING_MODEL_NAME", &c.AI.EmbeddingModel)
	str("OPENAI_API_KEY", &c.AI.APIKey)
	str("GENERATION_BACKEND", &c.AI.Generation.Backend)
	str("GENERATION_MODEL_NAME", &c.AI.Generation.Model)
	str("API_V1_STR", &c.Server.Prefix)
	str("AI_SERVICE_URL", &c.Client.BaseURL)
	str("API_V1_STR_AI", &c.Client.Prefix)
	str("DATABASE_URL", &c.Sources.DatabaseURL)
	str("VECTOR_STORE_DSN", &c.VectorStore.DSN)
	str("KNOWLEDGEBOT_LOG_LEVEL", &c.Log.Level)

	switch c.AI.Generation.Backend {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.AI.Generation.APIKey)
	case "gemini":
		str("GEMINI_API_KEY", &c.AI.Generation.APIKey)
	}

	if v, ok := lookup("RELEVANCE_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RELEVANCE_THRESHOLD=%q: %w", ErrInvalidConfig, v, err)
		}
		c.Retrieval.Threshold = f
	}
	if v, ok := lookup("AI_CLIENT_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: AI_CLIENT_TIMEOUT=%q: %w", ErrInvalidConfig, v, err)
		}
		c.Client.Timeout = Duration(d)
	}
	return nil
}
