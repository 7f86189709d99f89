// Package budget enforces daily and monthly token caps for one AI provider.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrQuotaExceeded.
	ActionReject Action = "reject"
)

// Store is the persistence interface for budget counters.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Limits configures one tracker. Zero limits mean unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  Action
}

// Tracker counts tokens in memory and writes increments behind to a Store.
// Check never leaves the process.
type Tracker struct {
	mu          sync.Mutex
	provider    string
	keyPrefix   string
	limits      Limits
	dailyUsed   int64
	monthlyUsed int64
	day         time.Time
	month       time.Time
	store       Store
	now         func() time.Time
	logger      *zap.Logger
}

// NewTracker creates a tracker for provider. Counter keys are
// {keyPrefix}budget:{provider}:daily:YYYY-MM-DD and ...:monthly:YYYY-MM.
func NewTracker(provider, keyPrefix string, limits Limits, logger *zap.Logger) *Tracker {
	t := &Tracker{
		provider:  provider,
		keyPrefix: keyPrefix,
		limits:    limits,
		now:       time.Now,
		logger:    logger,
	}
	now := t.now().UTC()
	t.day, t.month = truncateToDay(now), truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store and loads the current counters.
func (t *Tracker) WithStore(ctx context.Context, s Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s
	now := t.now().UTC()

	if val, err := s.Get(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily budget", zap.String("provider", t.provider), zap.Error(err))
	}
	if val, err := s.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly budget", zap.String("provider", t.provider), zap.Error(err))
	}

	t.logger.Info("Budget loaded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
	return t
}

func (t *Tracker) dailyKey(now time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", t.keyPrefix, t.provider, now.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(now time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", t.keyPrefix, t.provider, now.Format("2006-01"))
}

// Provider returns the tracked provider name.
func (t *Tracker) Provider() string { return t.provider }

// Check reports whether a new request may run.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	dailyExceeded := t.limits.Daily > 0 && t.dailyUsed >= t.limits.Daily
	monthlyExceeded := t.limits.Monthly > 0 && t.monthlyUsed >= t.limits.Monthly
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.limits.Action == ActionReject {
		return fmt.Errorf("%s budget: %w", t.provider, domain.ErrQuotaExceeded)
	}

	t.logger.Warn("Token budget exceeded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.limits.Daily),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens and persists the increment with its own timeout.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	t.mu.Lock()
	t.rollover()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	s := t.store
	now := t.now().UTC()
	dailyKey, monthlyKey := t.dailyKey(now), t.monthlyKey(now)
	t.mu.Unlock()

	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.IncrBy(ctx, dailyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := s.IncrBy(ctx, monthlyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Snapshot is a consistent read of the counters.
type Snapshot struct {
	DailyUsed    int64
	DailyLimit   int64
	MonthlyUsed  int64
	MonthlyLimit int64
	DayStart     time.Time
	MonthStart   time.Time
}

// Snapshot returns the counters after applying any pending rollover.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return Snapshot{
		DailyUsed:    t.dailyUsed,
		DailyLimit:   t.limits.Daily,
		MonthlyUsed:  t.monthlyUsed,
		MonthlyLimit: t.limits.Monthly,
		DayStart:     t.day,
		MonthStart:   t.month,
	}
}

// RemainingDaily returns tokens left today, or -1 when unlimited.
func (t *Tracker) RemainingDaily() int64 {
	s := t.Snapshot()
	return remaining(s.DailyLimit, s.DailyUsed)
}

// RemainingMonthly returns tokens left this month, or -1 when unlimited.
func (t *Tracker) RemainingMonthly() int64 {
	s := t.Snapshot()
	return remaining(s.MonthlyLimit, s.MonthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// rollover zeroes counters when the UTC day or month changes. Callers hold mu.
func (t *Tracker) rollover() {
	now := t.now().UTC()
	if today := truncateToDay(now); today.After(t.day) {
		t.dailyUsed = 0
		t.day = today
	}
	if month := truncateToMonth(now); month.After(t.month) {
		t.monthlyUsed = 0
		t.month = month
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
