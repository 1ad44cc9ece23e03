package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/knowledgebot/core"
)

const (
	DefaultTimeout = 300 * time.Second
	DefaultPrefix  = "/api/v1/ai"

	emptyAnswer = "Error: the AI service returned an empty answer."
)

// Client calls the pipeline HTTP service.
type Client struct {
	baseURL string
	prefix  string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithPrefix sets the route prefix of the pipeline service.
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) error {
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("prefix must start with '/': %q", prefix)
		}
		c.prefix = strings.TrimSuffix(prefix, "/")
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be greater than 0")
		}
		c.http.Timeout = timeout
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a client for the pipeline service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid pipeline base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		prefix:  DefaultPrefix,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default().With("component", "pipeline-client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ProcessFile asks the pipeline to ingest a file it can read at path.
func (c *Client) ProcessFile(ctx context.Context, workspaceID, sourceID, path, filename string) error {
	return c.process(ctx, "/process-file", sourceID, core.StatusCompleted, map[string]any{
		"workspace_id": workspaceID,
		"source_id":    sourceID,
		"file_path":    path,
		"filename":     filename,
	})
}

func (c *Client) ProcessQA(ctx context.Context, workspaceID, sourceID, question, answer string) error {
	return c.process(ctx, "/process-qa", sourceID, core.StatusCompleted, map[string]any{
		"workspace_id": workspaceID,
		"source_id":    sourceID,
		"qa_in":        map[string]string{"question": question, "answer": answer},
	})
}

func (c *Client) ProcessArticle(ctx context.Context, workspaceID, sourceID, title, content string) error {
	return c.process(ctx, "/process-article", sourceID, core.StatusCompleted, map[string]any{
		"workspace_id": workspaceID,
		"source_id":    sourceID,
		"article_in":   map[string]string{"title": title, "content": content},
	})
}

// DeleteEmbeddings removes every chunk of sourceID from collection.
func (c *Client) DeleteEmbeddings(ctx context.Context, collection, sourceID string) error {
	return c.process(ctx, "/delete-embeddings", sourceID, core.StatusDeleted, map[string]any{
		"collection_name": collection,
		"source_id":       sourceID,
	})
}

// process posts an ingestion or deletion call. A 2xx answer must echo the
// source id with the expected status; anything else is malformed.
func (c *Client) process(ctx context.Context, endpoint, sourceID string, want core.SourceStatus, payload any) error {
	var resp struct {
		Status   core.SourceStatus `json:"status"`
		SourceID string            `json:"source_id"`
	}
	if err := c.post(ctx, endpoint, payload, &resp); err != nil {
		return err
	}
	if resp.Status != want || resp.SourceID != sourceID {
		return fmt.Errorf("%w: %s answered status %q for source %q", ErrMalformedResponse, endpoint, resp.Status, resp.SourceID)
	}
	return nil
}

// Query runs the retrieval pipeline for a question.
func (c *Client) Query(ctx context.Context, workspaceID, sessionID, question string) (core.QueryResult, error) {
	var resp struct {
		Answer  *string            `json:"answer"`
		Sources []core.QuerySource `json:"sources"`
	}
	err := c.post(ctx, "/query", map[string]any{
		"workspace_id": workspaceID,
		"question":     question,
		"session_id":   sessionID,
	}, &resp)
	if err != nil {
		return core.QueryResult{}, err
	}

	result := core.QueryResult{Answer: emptyAnswer, Sources: resp.Sources}
	if resp.Answer != nil {
		result.Answer = *resp.Answer
	}
	if result.Sources == nil {
		result.Sources = []core.QuerySource{}
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.prefix+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("cannot connect to pipeline service", "url", c.baseURL, "err", err)
		return fmt.Errorf("%w: %w", ErrPipelineUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("pipeline service rejected request", "endpoint", endpoint, "status", resp.StatusCode, "body", string(data))
		return &PipelineRejectedError{StatusCode: resp.StatusCode, Detail: rejectionDetail(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// rejectionDetail extracts the "detail" field of an error body. Structured
// details such as validation lists are returned as raw JSON.
func rejectionDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 || string(body.Detail) == "null" {
		return "Unknown"
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}
