// Package usage reports AI token consumption per provider.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/recodex/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	readers []BudgetReader
	now     func() time.Time
}

// New creates a Service over the given provider budgets. No readers means
// no provider is tracked.
func New(readers ...BudgetReader) *Service {
	return &Service{readers: readers, now: time.Now}
}

// GetReport builds a usage report for the given period. Total reports the
// monthly counters without period boundaries.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	var start, end int64

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start, end = dayStart.UnixMilli(), dayStart.Add(24*time.Hour).UnixMilli()
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start, end = monthStart.UnixMilli(), monthStart.AddDate(0, 1, 0).UnixMilli()
	}

	budgets := make([]domusage.Budget, 0, len(s.readers))
	for _, r := range s.readers {
		snap := r.Snapshot()
		used, limit := snap.MonthlyUsed, snap.MonthlyLimit
		if period == domusage.PeriodDay {
			used, limit = snap.DailyUsed, snap.DailyLimit
		}
		budgets = append(budgets, domusage.NewBudget(r.Provider(), used, limit, remaining(limit, used), end))
	}

	return domusage.NewReport(period, start, end, budgets)
}

// remaining returns -1 for an unlimited budget and never goes below zero otherwise.
func remaining(limit, used int64) int64 {
	if limit <= 0 {
		return -1
	}
	return max(0, limit-used)
}
