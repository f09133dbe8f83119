// Package embed turns text into vectors. Documents and queries are embedded
// asymmetrically so that a query lands close to the stored question it means.
package embed

import (
	"context"
	"time"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/pkg/cohere"
	"github.com/WessleyAI/faqbot/pkg/metrics"
)

// Embedder produces fixed-length vectors. Implementations never return a
// zero or empty vector in place of an error.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Cohere adapts a cohere.Client to Embedder.
type Cohere struct {
	client  *cohere.Client
	metrics *metrics.Metrics
}

var _ Embedder = (*Cohere)(nil)

// NewCohere wraps client. m may be nil.
func NewCohere(client *cohere.Client, m *metrics.Metrics) *Cohere {
	return &Cohere{client: client, metrics: m}
}

// EmbedDocuments embeds texts in document mode.
func (c *Cohere) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	vecs, err := c.client.Embed(ctx, texts, cohere.InputSearchDocument)
	c.metrics.ObserveEmbed("document", start)
	if err != nil {
		return nil, &domain.EmbeddingError{Op: "embed documents", Wrapped: err}
	}
	return vecs, nil
}

// EmbedQuery embeds a single text in query mode.
func (c *Cohere) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vecs, err := c.client.Embed(ctx, []string{text}, cohere.InputSearchQuery)
	c.metrics.ObserveEmbed("query", start)
	if err != nil {
		return nil, &domain.EmbeddingError{Op: "embed query", Wrapped: err}
	}
	return vecs[0], nil
}
