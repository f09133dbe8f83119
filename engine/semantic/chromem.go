package semantic

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/WessleyAI/faqbot/engine/domain"
)

var errNoEmbeddingFunc = errors.New("semantic: chromem collections accept precomputed embeddings only")

// ChromemBackend stores points in an in-memory chromem-go database.
type ChromemBackend struct {
	db *chromem.DB
}

var _ Backend = (*ChromemBackend)(nil)

// NewChromemBackend creates a non-persistent chromem database.
func NewChromemBackend() *ChromemBackend {
	return &ChromemBackend{db: chromem.NewDB()}
}

// noEmbed rejects any attempt by chromem to embed text itself.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (c *ChromemBackend) CreateCollection(_ context.Context, name string, dims int) error {
	if c.db.GetCollection(name, noEmbed) != nil {
		return fmt.Errorf("semantic: collection %s already exists", name)
	}
	_, err := c.db.CreateCollection(name, map[string]string{"dims": strconv.Itoa(dims)}, noEmbed)
	if err != nil {
		return fmt.Errorf("semantic: chromem create %s: %w", name, err)
	}
	return nil
}

func (c *ChromemBackend) Upsert(ctx context.Context, name string, points []Point) error {
	col := c.db.GetCollection(name, noEmbed)
	if col == nil {
		return fmt.Errorf("semantic: collection %s not found", name)
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:      p.ID,
			Content: p.Entry.Question,
			Metadata: map[string]string{
				"question": p.Entry.Question,
				"answer":   p.Entry.Answer,
				"position": strconv.Itoa(p.Entry.Position),
			},
			Embedding: p.Vector,
		}
	}
	// Embeddings are precomputed, so one worker is enough.
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("semantic: chromem add %d documents: %w", len(docs), err)
	}
	return nil
}

func (c *ChromemBackend) Search(ctx context.Context, name string, vector []float32, k int) ([]domain.Hit, error) {
	col := c.db.GetCollection(name, noEmbed)
	if col == nil {
		return nil, fmt.Errorf("semantic: collection %s not found", name)
	}
	// chromem requires nResults <= document count.
	if n := col.Count(); k > n {
		k = n
	}
	if k == 0 {
		return []domain.Hit{}, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic: chromem query %s: %w", name, err)
	}
	hits := make([]domain.Hit, len(results))
	for i, r := range results {
		pos, _ := strconv.Atoi(r.Metadata["position"])
		hits[i] = domain.Hit{
			ID:       r.ID,
			Question: r.Metadata["question"],
			Answer:   r.Metadata["answer"],
			Score:    r.Similarity,
			Position: pos,
		}
	}
	return hits, nil
}

func (c *ChromemBackend) DeleteCollection(_ context.Context, name string) error {
	if err := c.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("semantic: chromem delete %s: %w", name, err)
	}
	return nil
}

func (c *ChromemBackend) Close() error { return nil }
