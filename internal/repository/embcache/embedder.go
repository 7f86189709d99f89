package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config scopes cache keys. Model is part of the key so a model switch never
// serves vectors from another embedding space. Dimensions, when set, rejects
// entries written with a different output size.
type Config struct {
	KeyPrefix  string
	Model      string
	Dimensions int
	TTL        time.Duration
}

// CachedEmbedder caches query embeddings in a key-value store. Concurrent
// misses for the same query share one provider call.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	prefix     string
	dims       int
	ttl        time.Duration
	flight     singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"shared"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		prefix:     cfg.KeyPrefix + "emb_cache:" + cfg.Model + ":",
		dims:       cfg.Dimensions,
		ttl:        cfg.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Tokens are reported only by the call that reached the provider; cache hits
// and callers that joined an in-flight miss report zero.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	text = normalizeQuery(text)
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	leader := false
	v, err, _ := c.flight.Do(key, func() (any, error) {
		leader = true
		result, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.putToCache(ctx, key, result.Embedding)
		return result, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	result, _ := v.(domain.EmbeddingResult)
	if !leader {
		c.incCache("shared")
		return domain.EmbeddingResult{Embedding: result.Embedding}, nil
	}
	c.incCache("miss")
	return result, nil
}

// normalizeQuery collapses whitespace so trivially different spellings of the
// same query share an entry.
func normalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if c.dims > 0 && len(vec) != c.dims {
		c.logger.Debug("Cached embedding has stale dimensions",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", c.dims))
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
