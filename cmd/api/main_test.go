package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/engine/embed/embedtest"
	"github.com/WessleyAI/faqbot/engine/semantic"
	"github.com/WessleyAI/faqbot/pkg/cohere"
	"github.com/WessleyAI/faqbot/pkg/metrics"
	"github.com/WessleyAI/faqbot/pkg/resilience"
)

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("error").Enabled(ctx, slog.LevelWarn))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
}

func TestNewBackend(t *testing.T) {
	for name, want := range map[string]any{
		"memory":  &semantic.MemoryBackend{},
		"chromem": &semantic.ChromemBackend{},
		"qdrant":  &semantic.QdrantBackend{},
	} {
		b, err := newBackend(Config{Backend: name, QdrantURL: "localhost:6334"})
		require.NoError(t, err, name)
		assert.IsType(t, want, b, name)
		b.Close()
	}
}

func TestBuildIndex_ClientErrorNotRetried(t *testing.T) {
	emb := &embedtest.Words{Err: &domain.EmbeddingError{Op: "embed documents", Wrapped: &cohere.APIError{StatusCode: 401, Message: "invalid api token"}}}
	idx := semantic.NewIndex(semantic.NewMemoryBackend(), emb, "test", semantic.Options{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := buildIndex(context.Background(), idx, skyEntries, logger)
	require.Error(t, err)
	assert.True(t, cohere.IsClientError(err))
	assert.Equal(t, 1, emb.DocumentCalls())
}

func TestBuildIndex_CanceledContext(t *testing.T) {
	emb := &embedtest.Words{Err: &domain.EmbeddingError{Op: "embed documents", Wrapped: &cohere.APIError{StatusCode: 503}}}
	idx := semantic.NewIndex(semantic.NewMemoryBackend(), emb, "test", semantic.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := buildIndex(ctx, idx, skyEntries, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, emb.DocumentCalls())
}

func TestBuildIndex_Succeeds(t *testing.T) {
	emb := &embedtest.Words{}
	idx := semantic.NewIndex(semantic.NewMemoryBackend(), emb, "test", semantic.Options{})
	require.NoError(t, buildIndex(context.Background(), idx, skyEntries, slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, 1, idx.Len())
}

func TestNewBreaker_ExportsState(t *testing.T) {
	m := metrics.New()
	b := newBreaker(slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	assert.Equal(t, resilience.StateClosed, b.State())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `faqbot_breaker_state{dependency="cohere"} 0`)

	// Client errors never trip the breaker.
	for i := 0; i < 10; i++ {
		_ = b.Call(context.Background(), func(context.Context) error {
			return &cohere.APIError{StatusCode: 401}
		})
	}
	assert.Equal(t, resilience.StateClosed, b.State())
}
