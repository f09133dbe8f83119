// Package cohere is a minimal client for Cohere's embed and rerank HTTP APIs.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/WessleyAI/faqbot/pkg/resilience"
)

// Defaults for the hosted API.
const (
	DefaultBaseURL     = "https://api.cohere.com"
	DefaultEmbedModel  = "embed-multilingual-v3.0"
	DefaultRerankModel = "rerank-multilingual-v3.0"

	// MaxBatch is the largest number of texts the embed endpoint accepts per call.
	MaxBatch = 96
)

// InputType selects the embedding space alignment.
type InputType string

const (
	InputSearchDocument InputType = "search_document"
	InputSearchQuery    InputType = "search_query"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cohere: status %d", e.StatusCode)
	}
	return fmt.Sprintf("cohere: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the Cohere API.
type Client struct {
	baseURL     string
	apiKey      string
	embedModel  string
	rerankModel string
	client      *http.Client
	breaker     *resilience.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithEmbedModel overrides the embedding model.
func WithEmbedModel(m string) Option { return func(c *Client) { c.embedModel = m } }

// WithRerankModel overrides the rerank model.
func WithRerankModel(m string) Option { return func(c *Client) { c.rerankModel = m } }

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.client = h } }

// WithBreaker routes every call through b.
func WithBreaker(b *resilience.Breaker) Option { return func(c *Client) { c.breaker = b } }

// NewClient creates a Cohere client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		embedModel:  DefaultEmbedModel,
		rerankModel: DefaultRerankModel,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EmbedModel returns the configured embedding model name.
func (c *Client) EmbedModel() string { return c.embedModel }

type embedReq struct {
	Texts     []string  `json:"texts"`
	Model     string    `json:"model"`
	InputType InputType `json:"input_type"`
	Truncate  string    `json:"truncate,omitempty"`
}

type embedResp struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns one vector per text, in order. Texts are sent in batches of
// MaxBatch. A response with a missing or empty vector is an error.
func (c *Client) Embed(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatch {
		end := min(start+MaxBatch, len(texts))
		batch := texts[start:end]

		var resp embedResp
		err := c.post(ctx, "/v1/embed", embedReq{
			Texts:     batch,
			Model:     c.embedModel,
			InputType: inputType,
			Truncate:  "END",
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("cohere embed: got %d vectors for %d texts", len(resp.Embeddings), len(batch))
		}
		for i, e := range resp.Embeddings {
			if len(e) == 0 {
				return nil, fmt.Errorf("cohere embed: empty vector for text %d", start+i)
			}
			v := make([]float32, len(e))
			for j, x := range e {
				v[j] = float32(x)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

type rerankReq struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// RerankResult is one scored document, referring to its input index.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResp struct {
	Results []RerankResult `json:"results"`
}

// Rerank scores documents against query jointly, most relevant first.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	var resp rerankResp
	err := c.post(ctx, "/v1/rerank", rerankReq{
		Model:     c.rerankModel,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}, &resp)
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("cohere rerank: index %d out of range", r.Index)
		}
	}
	return resp.Results, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	call := func(ctx context.Context) error { return c.do(ctx, path, in, out) }
	if c.breaker == nil {
		return call(ctx)
	}
	return c.breaker.Call(ctx, call)
}

func (c *Client) do(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("cohere: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cohere %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cohere %s decode: %w", path, err)
	}
	return nil
}

// IsClientError reports whether err is a 4xx response other than 429.
// Such errors indicate a bad request or key, not an unhealthy provider.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < 500 && !apiErr.Temporary()
}
