package qa

import (
	"context"
	"fmt"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/pkg/fn"
)

// rerank reorders hits with the configured Reranker. Any failure keeps the
// original order.
func (s *Service) rerank(ctx context.Context, query string, hits []domain.Hit) []domain.Hit {
	if s.opts.Reranker == nil || len(hits) < 2 {
		return hits
	}
	ranked := fn.TracedStage("qa.rerank", func(ctx context.Context, hits []domain.Hit) fn.Result[[]domain.Hit] {
		return s.reorder(ctx, query, hits)
	})(ctx, hits)

	return ranked.OrElse(func(err error) []domain.Hit {
		s.logger.Warn("qa: rerank failed, keeping similarity order", "err", err)
		s.metrics.RerankFallback()
		return hits
	})
}

func (s *Service) reorder(ctx context.Context, query string, hits []domain.Hit) fn.Result[[]domain.Hit] {
	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Question
	}
	order, err := s.opts.Reranker.Rerank(ctx, query, docs, len(docs))
	if err != nil {
		return fn.Err[[]domain.Hit](err)
	}
	if len(order) != len(hits) {
		return fn.Errf[[]domain.Hit]("rerank returned %d of %d candidates", len(order), len(hits))
	}

	seen := make([]bool, len(hits))
	out := make([]domain.Hit, len(hits))
	for i, idx := range order {
		if idx < 0 || idx >= len(hits) || seen[idx] {
			return fn.Err[[]domain.Hit](fmt.Errorf("rerank returned invalid index %d", idx))
		}
		seen[idx] = true
		out[i] = hits[idx]
	}
	return fn.Ok(out)
}
