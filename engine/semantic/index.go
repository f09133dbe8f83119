// Package semantic owns the vector index of knowledge questions. An index is
// built in generations: each Build populates a fresh backend collection and
// then swaps it in atomically, so searches never see a partial build.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/engine/embed"
	"github.com/WessleyAI/faqbot/pkg/metrics"
)

var errNonPositiveK = errors.New("k must be positive")

// tieSlack is how many extra hits Search asks a backend for, so that hits
// tied with the k-th score can still be ordered by position.
const tieSlack = 4

type generation struct {
	name string
	dims int
	size int
}

// Index embeds knowledge questions and answers nearest-neighbour queries.
type Index struct {
	backend    Backend
	embedder   embed.Embedder
	collection string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	active atomic.Pointer[generation]
	// swap is held for reading across a backend search and for writing
	// while the active generation changes.
	swap sync.RWMutex

	mu  sync.Mutex // serializes Build
	seq uint64
}

// Options configures an Index. Zero values are valid.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewIndex creates an empty index over backend. Collection names the index;
// generations are stored as <collection>_g<N>.
func NewIndex(backend Backend, embedder embed.Embedder, collection string, opts Options) *Index {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Index{
		backend:    backend,
		embedder:   embedder,
		collection: collection,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// Build embeds every entry's question and replaces the index contents.
// Answers are never embedded. Entry positions are reassigned from slice order.
func (x *Index) Build(ctx context.Context, entries []domain.Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	gen, err := x.build(ctx, entries)
	x.metrics.IndexBuilt(len(entries), err)
	if err != nil {
		return err
	}

	x.swap.Lock()
	old := x.active.Swap(gen)
	x.swap.Unlock()
	if old != nil && old.size > 0 {
		if err := x.backend.DeleteCollection(ctx, old.name); err != nil {
			x.logger.Warn("semantic: drop stale generation failed", "collection", old.name, "err", err)
		}
	}

	x.logger.Info("semantic: index built", "collection", gen.name, "entries", gen.size, "dims", gen.dims)
	return nil
}

func (x *Index) build(ctx context.Context, entries []domain.Entry) (*generation, error) {
	x.seq++
	gen := &generation{name: fmt.Sprintf("%s_g%d", x.collection, x.seq)}
	if len(entries) == 0 {
		return gen, nil
	}

	questions := make([]string, len(entries))
	for i, e := range entries {
		questions[i] = e.Question
	}
	vecs, err := x.embedder.EmbedDocuments(ctx, questions)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(entries) {
		return nil, &domain.EmbeddingError{
			Op:      "embed documents",
			Wrapped: fmt.Errorf("got %d vectors for %d questions", len(vecs), len(entries)),
		}
	}

	gen.dims = len(vecs[0])
	if gen.dims == 0 {
		return nil, &domain.EmbeddingError{Op: "embed documents", Wrapped: errors.New("empty vector")}
	}
	points := make([]Point, len(entries))
	for i, v := range vecs {
		if len(v) != gen.dims {
			return nil, &domain.IndexError{Op: "build", Wrapped: &domain.DimensionMismatchError{Want: gen.dims, Got: len(v)}}
		}
		e := entries[i]
		e.Position = i
		points[i] = Point{ID: uuid.NewString(), Vector: v, Entry: e}
	}

	if err := x.backend.CreateCollection(ctx, gen.name, gen.dims); err != nil {
		return nil, &domain.IndexError{Op: "create collection", Wrapped: err}
	}
	if err := x.backend.Upsert(ctx, gen.name, points); err != nil {
		if derr := x.backend.DeleteCollection(ctx, gen.name); derr != nil {
			x.logger.Warn("semantic: cleanup after failed upsert", "collection", gen.name, "err", derr)
		}
		return nil, &domain.IndexError{Op: "upsert", Wrapped: err}
	}
	gen.size = len(points)
	return gen, nil
}

// Search returns up to k entries nearest to vector, best first. Equal scores
// keep insertion order on every backend. An empty or unbuilt index yields no hits and no error.
func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, &domain.IndexError{Op: "search", Wrapped: errNonPositiveK}
	}
	x.swap.RLock()
	defer x.swap.RUnlock()
	gen := x.active.Load()
	if gen == nil || gen.size == 0 {
		return []domain.Hit{}, nil
	}
	if len(vector) != gen.dims {
		return nil, &domain.IndexError{Op: "search", Wrapped: &domain.DimensionMismatchError{Want: gen.dims, Got: len(vector)}}
	}

	var hits []domain.Hit
	for fetch := min(k+tieSlack, gen.size); ; fetch = min(fetch*2, gen.size) {
		var err error
		hits, err = x.backend.Search(ctx, gen.name, vector, fetch)
		if err != nil {
			return nil, &domain.IndexError{Op: "search", Wrapped: err}
		}
		rankHits(hits)
		// A backend may cut a run of equal scores anywhere. Widen until the
		// run ending at the k-th hit is fully fetched.
		if fetch >= gen.size || len(hits) <= k || hits[len(hits)-1].Score != hits[k-1].Score {
			break
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of vectors in the active generation.
func (x *Index) Len() int {
	if gen := x.active.Load(); gen != nil {
		return gen.size
	}
	return 0
}

// Ready reports whether at least one Build has completed.
func (x *Index) Ready() bool {
	return x.active.Load() != nil
}

// Close releases the backend.
func (x *Index) Close() error {
	return x.backend.Close()
}

// rankHits orders by score descending, then by position ascending.
func rankHits(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
}
