package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/faqbot/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, dims int, seen *[]embedReq) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = append(*seen, req)
		}
		resp := embedResp{Embeddings: make([][]float64, len(req.Texts))}
		for i := range req.Texts {
			v := make([]float64, dims)
			v[0] = float64(i + 1)
			resp.Embeddings[i] = v
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbed_InputTypeAndModel(t *testing.T) {
	var seen []embedReq
	srv := embedServer(t, 4, &seen)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithEmbedModel("embed-test"))
	vecs, err := c.Embed(context.Background(), []string{"a", "b"}, InputSearchQuery)
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 4)
	assert.Equal(t, float32(2), vecs[1][0])
	require.Len(t, seen, 1)
	assert.Equal(t, InputSearchQuery, seen[0].InputType)
	assert.Equal(t, "embed-test", seen[0].Model)
}

func TestEmbed_Batches(t *testing.T) {
	var seen []embedReq
	srv := embedServer(t, 2, &seen)
	defer srv.Close()

	texts := make([]string, MaxBatch+5)
	for i := range texts {
		texts[i] = "q"
	}
	c := NewClient("test-key", WithBaseURL(srv.URL))
	vecs, err := c.Embed(context.Background(), texts, InputSearchDocument)
	require.NoError(t, err)

	assert.Len(t, vecs, len(texts))
	require.Len(t, seen, 2)
	assert.Len(t, seen[0].Texts, MaxBatch)
	assert.Len(t, seen[1].Texts, 5)
}

func TestEmbed_ShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Embed(context.Background(), []string{"a", "b"}, InputSearchDocument)
	assert.ErrorContains(t, err, "got 1 vectors for 2 texts")
}

func TestEmbed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embeddings":[[]]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Embed(context.Background(), []string{"a"}, InputSearchQuery)
	assert.ErrorContains(t, err, "empty vector")
}

func TestEmbed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api token"}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Embed(context.Background(), []string{"a"}, InputSearchQuery)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid api token", apiErr.Message)
	assert.True(t, IsClientError(err))
	assert.False(t, apiErr.Temporary())
}

func TestAPIError_Temporary(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).Temporary())
	assert.True(t, (&APIError{StatusCode: 503}).Temporary())
	assert.False(t, IsClientError(&APIError{StatusCode: 429}))
	assert.Equal(t, "cohere: status 500", (&APIError{StatusCode: 500}).Error())
}

func TestRerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		var req rerankReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sky color?", req.Query)
		assert.Equal(t, 2, req.TopN)
		assert.Equal(t, DefaultRerankModel, req.Model)
		w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.1}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	res, err := c.Rerank(context.Background(), "sky color?", []string{"grass", "sky"}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Index)
	assert.InDelta(t, 0.9, res[0].RelevanceScore, 1e-9)
}

func TestRerank_IndexOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Rerank(context.Background(), "q", []string{"a"}, 1)
	assert.ErrorContains(t, err, "out of range")
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	c := NewClient("k", WithBaseURL(srv.URL), WithBreaker(b))

	for i := 0; i < 2; i++ {
		_, err := c.Embed(context.Background(), []string{"a"}, InputSearchQuery)
		require.Error(t, err)
	}
	_, err := c.Embed(context.Background(), []string{"a"}, InputSearchQuery)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
