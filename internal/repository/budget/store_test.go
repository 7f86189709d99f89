package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/recodex/internal/db"
)

// --- Mocks ---

type mockKV struct {
	values  map[string]int64
	ttls    map[string]time.Duration
	getErr  error
	incrErr error
	raw     map[string][]byte
	expires int
}

func newMockKV() *mockKV {
	return &mockKV{values: map[string]int64{}, ttls: map[string]time.Duration{}, raw: map[string][]byte{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if b, ok := m.raw[key]; ok {
		return b, nil
	}
	v, ok := m.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.values[key] += val
	return m.values[key], nil
}

func (m *mockKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.expires++
	m.ttls[key] = ttl
	return nil
}

// --- Tests ---

func TestIncrBy_ArmsTTLByPeriod(t *testing.T) {
	kv := newMockKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)
	ctx := context.Background()

	daily := "recodex:budget:llm:daily:2026-10-17"
	monthly := "recodex:budget:llm:monthly:2026-10"

	if err := s.IncrBy(ctx, daily, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.IncrBy(ctx, monthly, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kv.ttls[daily] != 48*time.Hour {
		t.Errorf("daily TTL = %v", kv.ttls[daily])
	}
	if kv.ttls[monthly] != 62*24*time.Hour {
		t.Errorf("monthly TTL = %v", kv.ttls[monthly])
	}
}

func TestIncrBy_ArmsTTLOnlyOnCreate(t *testing.T) {
	kv := newMockKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)
	ctx := context.Background()
	key := "recodex:budget:embedding:daily:2026-10-17"

	for range 3 {
		if err := s.IncrBy(ctx, key, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if kv.expires != 1 {
		t.Errorf("EXPIRE calls = %d, want 1", kv.expires)
	}
	if kv.values[key] != 30 {
		t.Errorf("counter = %d, want 30", kv.values[key])
	}
}

func TestIncrBy_Error(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("READONLY")
	s := New(kv, time.Hour, time.Hour)

	if err := s.IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet(t *testing.T) {
	kv := newMockKV()
	s := New(kv, time.Hour, time.Hour)
	ctx := context.Background()

	v, err := s.Get(ctx, "missing")
	if err != nil || v != 0 {
		t.Fatalf("missing key must read as 0, got %d, %v", v, err)
	}

	_ = s.IncrBy(ctx, "k:daily:x", 1234)
	v, err = s.Get(ctx, "k:daily:x")
	if err != nil || v != 1234 {
		t.Fatalf("expected 1234, got %d, %v", v, err)
	}
}

func TestGet_ParseError(t *testing.T) {
	kv := newMockKV()
	kv.raw["bad"] = []byte("abc")
	s := New(kv, time.Hour, time.Hour)

	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGet_StoreError(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("timeout")
	s := New(kv, time.Hour, time.Hour)

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}
