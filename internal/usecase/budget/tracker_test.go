package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
)

// --- Mocks ---

type memStore struct {
	mu      sync.Mutex
	data    map[string]int64
	getErr  error
	incrErr error
}

func newMemStore() *memStore { return &memStore{data: map[string]int64{}} }

func (m *memStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return m.incrErr
	}
	m.data[key] += val
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestTracker(limits Limits, now time.Time) *Tracker {
	tr := NewTracker("gemini", "recodex:", limits, zap.NewNop())
	tr.now = fixedClock(now)
	tr.day, tr.month = truncateToDay(now), truncateToMonth(now)
	return tr
}

// --- Tests ---

func TestTracker_Check(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		limits  Limits
		record  int64
		wantErr bool
	}{
		{"below daily limit", Limits{Daily: 100, Action: ActionReject}, 99, false},
		{"daily reached, reject", Limits{Daily: 100, Action: ActionReject}, 100, true},
		{"daily reached, warn", Limits{Daily: 100, Action: ActionWarn}, 200, false},
		{"monthly reached, reject", Limits{Monthly: 500, Action: ActionReject}, 500, true},
		{"unlimited", Limits{Action: ActionReject}, 1 << 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(tt.limits, now)
			tr.Record(tt.record)

			err := tr.Check(context.Background())
			if tt.wantErr && !errors.Is(err, domain.ErrQuotaExceeded) {
				t.Fatalf("expected ErrQuotaExceeded, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTracker_Remaining(t *testing.T) {
	tr := newTestTracker(Limits{Daily: 1000, Monthly: 10000}, time.Now().UTC())
	tr.Record(300)

	if got := tr.RemainingDaily(); got != 700 {
		t.Errorf("RemainingDaily = %d, want 700", got)
	}
	if got := tr.RemainingMonthly(); got != 9700 {
		t.Errorf("RemainingMonthly = %d, want 9700", got)
	}

	tr.Record(5000)
	if got := tr.RemainingDaily(); got != 0 {
		t.Errorf("RemainingDaily must floor at 0, got %d", got)
	}

	unlimited := newTestTracker(Limits{}, time.Now().UTC())
	if unlimited.RemainingDaily() != -1 || unlimited.RemainingMonthly() != -1 {
		t.Error("expected -1 for unlimited budgets")
	}
}

func TestTracker_Rollover(t *testing.T) {
	start := time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC)
	tr := newTestTracker(Limits{Daily: 100, Monthly: 1000, Action: ActionReject}, start)
	tr.Record(100)

	if err := tr.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before rollover")
	}

	tr.now = fixedClock(start.Add(2 * time.Hour))
	s := tr.Snapshot()
	if s.DailyUsed != 0 || s.MonthlyUsed != 0 {
		t.Fatalf("expected counters reset on new month, got %+v", s)
	}
	if err := tr.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error after rollover: %v", err)
	}
}

func TestTracker_WithStore(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.data["recodex:budget:gemini:daily:2026-10-17"] = 40
	store.data["recodex:budget:gemini:monthly:2026-10"] = 400

	tr := newTestTracker(Limits{Daily: 100}, now).WithStore(context.Background(), store)

	s := tr.Snapshot()
	if s.DailyUsed != 40 || s.MonthlyUsed != 400 {
		t.Fatalf("counters not loaded: %+v", s)
	}

	tr.Record(10)
	if store.data["recodex:budget:gemini:daily:2026-10-17"] != 50 {
		t.Errorf("daily increment not persisted: %v", store.data)
	}
	if store.data["recodex:budget:gemini:monthly:2026-10"] != 410 {
		t.Errorf("monthly increment not persisted: %v", store.data)
	}
}

func TestTracker_StoreErrorsAreLoggedOnly(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.incrErr = errors.New("connection refused")

	tr := newTestTracker(Limits{Daily: 100}, time.Now().UTC()).WithStore(context.Background(), store)
	tr.Record(10)

	if got := tr.Snapshot().DailyUsed; got != 10 {
		t.Errorf("in-memory counter must still advance, got %d", got)
	}
}

func TestTracker_IgnoresNonPositive(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(Limits{}, time.Now().UTC()).WithStore(context.Background(), store)

	tr.Record(0)
	tr.Record(-5)

	if len(store.data) != 0 {
		t.Errorf("expected no writes, got %v", store.data)
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := newTestTracker(Limits{}, time.Now().UTC())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(2)
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().DailyUsed; got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}
