package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WessleyAI/faqbot/pkg/metrics"
)

// CacheClient is the subset of redis.Cmdable used by Cached.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CacheOptions configures Cached.
type CacheOptions struct {
	// Namespace separates vectors of different models. Usually the model name.
	Namespace string
	TTL       time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Cached stores query vectors in Redis. Document embeddings pass straight
// through. Redis failures are logged and treated as misses.
type Cached struct {
	next   Embedder
	rdb    CacheClient
	opts   CacheOptions
	logger *slog.Logger
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps next with a Redis query cache.
func NewCached(next Embedder, rdb CacheClient, opts CacheOptions) *Cached {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Cached{next: next, rdb: rdb, opts: opts, logger: logger}
}

// EmbedDocuments is never cached.
func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

// EmbedQuery returns a cached vector when present, otherwise embeds and stores it.
func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec := bytesToFloat32(raw); len(vec) > 0 {
			c.opts.Metrics.EmbedCache("hit")
			return vec, nil
		}
		c.opts.Metrics.EmbedCache("miss")
	case errors.Is(err, redis.Nil):
		c.opts.Metrics.EmbedCache("miss")
	default:
		c.opts.Metrics.EmbedCache("error")
		c.logger.Warn("embed cache read failed", "err", err)
	}

	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, float32ToBytes(vec), c.opts.TTL).Err(); err != nil {
		c.logger.Warn("embed cache write failed", "err", err)
	}
	return vec, nil
}

func (c *Cached) key(text string) string {
	h := sha256.Sum256([]byte(c.opts.Namespace + "\x00" + text))
	return "faqbot:emb:query:" + hex.EncodeToString(h[:])
}

func float32ToBytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
