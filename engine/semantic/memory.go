package semantic

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/WessleyAI/faqbot/engine/domain"
)

// MemoryBackend is an in-process exact cosine scan. It is the default
// backend: the knowledge set is small and lives for the process lifetime.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dims   int
	points []memPoint
}

type memPoint struct {
	Point
	norm float64
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memCollection)}
}

func (m *MemoryBackend) CreateCollection(_ context.Context, name string, dims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("semantic: collection %s already exists", name)
	}
	m.collections[name] = &memCollection{dims: dims}
	return nil
}

func (m *MemoryBackend) Upsert(_ context.Context, name string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("semantic: collection %s not found", name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dims {
			return &domain.DimensionMismatchError{Want: c.dims, Got: len(p.Vector)}
		}
		c.points = append(c.points, memPoint{Point: p, norm: norm(p.Vector)})
	}
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, name string, vector []float32, k int) ([]domain.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("semantic: collection %s not found", name)
	}

	qnorm := norm(vector)
	hits := make([]domain.Hit, len(c.points))
	for i, p := range c.points {
		hits[i] = domain.Hit{
			ID:       p.ID,
			Question: p.Entry.Question,
			Answer:   p.Entry.Answer,
			Score:    cosine(vector, p.Vector, qnorm, p.norm),
			Position: p.Entry.Position,
		}
	}
	rankHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryBackend) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float32, na, nb float64) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (na * nb))
}
