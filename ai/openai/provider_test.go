package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/knowledgebot/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			data := make([]map[string]any, len(req.Input))
			for i, in := range req.Input {
				data[i] = map[string]any{
					"object":    "embedding",
					"index":     i,
					"embedding": []float32{float32(len(in)), 1, 0},
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"model":  "all-minilm",
				"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "llama3:8b-instruct",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": answer},
					"finish_reason": "stop",
				}},
				"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestProviderEmbedsInOrder(t *testing.T) {
	srv := fakeServer(t, "")
	defer srv.Close()

	provider, err := NewProvider(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)
	defer provider.Close()

	vectors, err := provider.Embedder().EmbedTexts(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])
	assert.Equal(t, float32(2), vectors[2][0])
}

func TestProviderGenerates(t *testing.T) {
	srv := fakeServer(t, "Twenty days per year. [Source: Q&A, p. N/A]")
	defer srv.Close()

	provider, err := NewProvider(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)

	gen := provider.Generator()
	require.NotNil(t, gen)
	answer, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Twenty days per year. [Source: Q&A, p. N/A]", answer)
}

func TestProviderWithoutGenerationModel(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithGenerationModel("")))
	require.NoError(t, err)
	assert.Nil(t, provider.Generator())
}

func TestGeneratorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gen, err := NewGenerator(ai.NewConfig(ai.WithHost(url)))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrBackendUnreachable)
}
