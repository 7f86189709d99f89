package recodex

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/recodex/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// UsageReport lists token budgets per AI provider for a time period.
// Only providers configured with a budget appear.
type UsageReport struct {
	Period      UsagePeriod
	PeriodStart time.Time // zero for PeriodTotal
	PeriodEnd   time.Time
	Budgets     []BudgetStatus
}

// BudgetStatus tracks one provider's token quota state.
type BudgetStatus struct {
	Provider        string // "embedding" or "llm"
	TokensUsed      int64
	TokensLimit     int64 // 0 when unlimited
	TokensRemaining int64 // -1 when unlimited
	IsExhausted     bool
	ResetsAt        time.Time // zero for PeriodTotal
}

// Usage returns a token usage report for the given period.
// Observer always records success: budgets are tracked in memory.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (UsageReport, error) {
	p := domusage.Period(period)
	if !p.IsValid() {
		return UsageReport{}, invalidf("unknown usage period %q", period)
	}

	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	report := c.usageSvc.GetReport(ctx, p)
	budgets := make([]BudgetStatus, 0, len(report.Budgets()))
	for _, b := range report.Budgets() {
		budgets = append(budgets, BudgetStatus{
			Provider:        b.Provider(),
			TokensUsed:      b.TokensUsed(),
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
			ResetsAt:        millisToTime(b.ResetsAt()),
		})
	}

	return UsageReport{
		Period:      UsagePeriod(report.Period()),
		PeriodStart: millisToTime(report.PeriodStart()),
		PeriodEnd:   millisToTime(report.PeriodEnd()),
		Budgets:     budgets,
	}, nil
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
