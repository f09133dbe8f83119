package semantic

import (
	"context"

	"github.com/WessleyAI/faqbot/engine/domain"
)

// Point is one embedded knowledge entry as handed to a backend.
type Point struct {
	ID     string
	Vector []float32
	Entry  domain.Entry
}

// Backend is a nearest-neighbour store addressed by collection name.
// Search returns hits ranked by cosine similarity, best first.
type Backend interface {
	CreateCollection(ctx context.Context, name string, dims int) error
	Upsert(ctx context.Context, name string, points []Point) error
	Search(ctx context.Context, name string, vector []float32, k int) ([]domain.Hit, error)
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}
