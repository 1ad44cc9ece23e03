package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/poiesic/knowledgebot/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorRequiresKey(t *testing.T) {
	_, err := NewGenerator(ai.NewConfig(ai.WithAPIKey("none")))
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]any{
				{"type": "text", "text": "Twenty days."},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 3},
		})
	}))
	defer srv.Close()

	gen, err := NewGenerator(
		ai.NewConfig(ai.WithAPIKey("test-key"), ai.WithGenerationModel("claude-test")),
		WithRequestOptions(option.WithBaseURL(srv.URL), option.WithMaxRetries(0)),
	)
	require.NoError(t, err)

	answer, err := gen.Generate(context.Background(), "How many vacation days?")
	require.NoError(t, err)
	assert.Equal(t, "Twenty days.", answer)
}
