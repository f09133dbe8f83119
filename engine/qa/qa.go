// Package qa decides whether a user's question matches a known FAQ entry.
// The query is embedded, the nearest stored questions are fetched, optionally
// reranked, and the best hit is accepted only if its cosine score reaches the
// configured threshold.
package qa

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/pkg/fn"
	"github.com/WessleyAI/faqbot/pkg/metrics"
)

const tracerName = "github.com/WessleyAI/faqbot/engine/qa"

// FallbackMessage is returned in place of an answer when no stored question
// is similar enough.
const FallbackMessage = "죄송합니다. 해당 질문에 대한 정확한 답변을 찾을 수 없습니다. Perso.ai에 대한 다른 질문을 해주세요."

// QueryEmbedder embeds a user query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns up to k stored questions nearest to vector, best first.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.Hit, error)
}

// Reranker returns indices into docs in order of relevance to query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, topN int) ([]int, error)
}

// Options configures the retrieval policy.
type Options struct {
	TopK      int
	Threshold float32
	Reranker  Reranker // nil disables reranking
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// DefaultOptions returns TopK 3 and Threshold 0.7.
func DefaultOptions() Options {
	return Options{TopK: 3, Threshold: 0.7}
}

// Service answers questions against an index.
type Service struct {
	embedder QueryEmbedder
	index    Searcher
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	lookup   fn.Stage[string, []domain.Hit]
}

// New creates a Service. A non-positive TopK falls back to the default.
func New(embedder QueryEmbedder, index Searcher, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	s.lookup = fn.Then(
		fn.TracedStage("qa.embed_query", s.embedQuery),
		fn.TracedStage("qa.search", s.search(opts.TopK)),
	)
	return s
}

// Threshold returns the acceptance threshold in use.
func (s *Service) Threshold() float32 { return s.opts.Threshold }

func (s *Service) embedQuery(ctx context.Context, query string) fn.Result[[]float32] {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	return fn.FromPair(vec, err)
}

func (s *Service) search(k int) fn.Stage[[]float32, []domain.Hit] {
	return func(ctx context.Context, vec []float32) fn.Result[[]domain.Hit] {
		hits, err := s.index.Search(ctx, vec, k)
		return fn.FromPair(hits, err)
	}
}

// Answer resolves query to a stored answer or a NotFound result.
// Embedding and index failures are returned unchanged and are never retried.
func (s *Service) Answer(ctx context.Context, query string) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "qa.Answer")
	defer span.End()

	hits, err := s.lookup(ctx, query).Unwrap()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveQuery(metrics.OutcomeError, 0)
		return nil, err
	}
	if len(hits) == 0 {
		s.metrics.ObserveQuery(metrics.OutcomeEmpty, 0)
		return NotFound{Query: query}, nil
	}

	hits = s.rerank(ctx, query, hits)
	best := hits[0]
	span.SetAttributes(
		attribute.Int("qa.hits", len(hits)),
		attribute.Float64("qa.best_score", float64(best.Score)),
	)

	if best.Score < s.opts.Threshold {
		s.metrics.ObserveQuery(metrics.OutcomeNotFound, best.Score)
		s.logger.Debug("qa: below threshold", "score", best.Score, "threshold", s.opts.Threshold, "nearest", best.Question)
		return NotFound{Query: query, Message: FallbackMessage, Score: best.Score}, nil
	}
	s.metrics.ObserveQuery(metrics.OutcomeFound, best.Score)
	return Found{Question: best.Question, Answer: best.Answer, Score: best.Score}, nil
}

// Search embeds query and returns the top k hits without thresholding.
func (s *Service) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "qa.Search")
	defer span.End()

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.index.Search(ctx, vec, k)
}
