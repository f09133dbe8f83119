// Package embedtest provides a deterministic, offline Embedder for tests.
package embedtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"
)

// Dims is the vector length produced by Words.
const Dims = 64

// Words embeds text as a hashed bag of lowercase words. Texts sharing words
// score a positive cosine similarity; texts with no words in common score
// zero barring hash collisions.
type Words struct {
	// Err, when set, is returned by every call.
	Err error

	documents atomic.Int64
	queries   atomic.Int64
}

func (w *Words) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	w.documents.Add(1)
	if w.Err != nil {
		return nil, w.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (w *Words) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	w.queries.Add(1)
	if w.Err != nil {
		return nil, w.Err
	}
	return Vector(text), nil
}

// DocumentCalls returns how many EmbedDocuments calls were made.
func (w *Words) DocumentCalls() int { return int(w.documents.Load()) }

// QueryCalls returns how many EmbedQuery calls were made.
func (w *Words) QueryCalls() int { return int(w.queries.Load()) }

// Vector returns the embedding Words assigns to text.
func Vector(text string) []float32 {
	v := make([]float32, Dims)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, f := range fields {
		h := fnv.New32a()
		h.Write([]byte(f))
		v[h.Sum32()%Dims]++
	}
	// Keep every vector non-zero so cosine is always defined.
	v[Dims-1] += 0.01
	return v
}
