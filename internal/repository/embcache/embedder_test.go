package embcache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// GET → ErrKeyNotFound (cache miss)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	var (
		setKey string
		setTTL time.Duration
	)
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(ctx, "게이밍 노트북")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, "recodex:emb_cache:text-embedding-3-small:") {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("expected TTL 1h, got %v", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("inner embedder must not be called on hit, got %d calls", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := ce.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if setCalled {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorsAreSoft(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 3}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("timeout") }

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("cache failures must not fail the embed: %v", err)
	}
	if result.TotalTokens != 3 {
		t.Errorf("expected provider result, got %+v", result)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte{1, 2, 3}, nil }

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("corrupt entry must fall through to provider, got %d calls", inner.calls)
	}
}

func TestEmbed_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{}
	ce := New(inner, ms, testConfig, counter, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "q")
	ms.getFn = func(context.Context, string) ([]byte, error) { return vectorToCacheBytes([]float32{1}), nil }
	_, _ = ce.Embed(context.Background(), "q")

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}

func TestEmbed_NormalizesWhitespace(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var keys []string
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		keys = append(keys, key)
		return nil, db.ErrKeyNotFound
	}

	_, _ = ce.Embed(context.Background(), "게이밍   노트북")
	_, _ = ce.Embed(context.Background(), "  게이밍 노트북\n")

	if len(keys) != 2 || keys[0] != keys[1] {
		t.Errorf("expected one key for both spellings, got %v", keys)
	}
}

func TestEmbed_StaleDimensionsIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}, TotalTokens: 4}}
	ms := &mockKVStore{getFn: func(context.Context, string) ([]byte, error) {
		return vectorToCacheBytes([]float32{1, 2}), nil
	}}
	cfg := testConfig
	cfg.Dimensions = 3
	ce := New(inner, ms, cfg, nil, zap.NewNop())

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || len(result.Embedding) != 3 {
		t.Errorf("stale entry must be re-embedded, calls=%d vec=%v", inner.calls, result.Embedding)
	}
}

func TestEmbed_ConcurrentMissesShareOneCall(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	inner := embedFunc(func(context.Context, string) (domain.EmbeddingResult, error) {
		calls.Add(1)
		<-release
		return domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 7}, nil
	})

	var lookups atomic.Int32
	joined := make(chan struct{})
	ms := &mockKVStore{getFn: func(context.Context, string) ([]byte, error) {
		if lookups.Add(1) == 2 {
			close(joined)
		}
		return nil, db.ErrKeyNotFound
	}}
	ce := New(inner, ms, testConfig, nil, zap.NewNop())

	results := make(chan domain.EmbeddingResult, 2)
	for range 2 {
		go func() {
			r, err := ce.Embed(context.Background(), "q")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- r
		}()
	}

	<-joined
	time.Sleep(20 * time.Millisecond)
	close(release)

	var tokens int
	for range 2 {
		r := <-results
		if len(r.Embedding) != 1 {
			t.Errorf("every caller gets the vector, got %v", r.Embedding)
		}
		tokens += r.TotalTokens
	}
	if calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", calls.Load())
	}
	if tokens != 7 {
		t.Errorf("tokens reported = %d, want 7 (leader only)", tokens)
	}
}

type embedFunc func(ctx context.Context, text string) (domain.EmbeddingResult, error)

func (f embedFunc) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return f(ctx, text)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}
