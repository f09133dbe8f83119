package embed

import (
	"context"

	"github.com/WessleyAI/faqbot/pkg/cohere"
)

// CohereReranker orders candidate documents with Cohere's rerank model.
type CohereReranker struct {
	client *cohere.Client
}

// NewCohereReranker wraps client.
func NewCohereReranker(client *cohere.Client) *CohereReranker {
	return &CohereReranker{client: client}
}

// Rerank returns indices into docs, most relevant first.
func (r *CohereReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]int, error) {
	results, err := r.client.Rerank(ctx, query, docs, topN)
	if err != nil {
		return nil, err
	}
	order := make([]int, len(results))
	for i, res := range results {
		order[i] = res.Index
	}
	return order, nil
}
