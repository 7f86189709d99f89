// Package usage describes AI token consumption against configured budgets.
package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// IsValid checks if the period is supported.
func (p Period) IsValid() bool {
	return p == PeriodDay || p == PeriodMonth || p == PeriodTotal
}

// Budget is one provider's token budget state for a period.
type Budget struct {
	provider        string
	tokensUsed      int64
	tokensLimit     int64
	tokensRemaining int64
	isExhausted     bool
	resetsAt        int64 // unix millis, 0 for total
}

// NewBudget creates a Budget snapshot. limit 0 means unlimited.
func NewBudget(provider string, used, limit, remaining int64, resetsAt int64) Budget {
	return Budget{
		provider:        provider,
		tokensUsed:      used,
		tokensLimit:     limit,
		tokensRemaining: remaining,
		isExhausted:     limit > 0 && remaining <= 0,
		resetsAt:        resetsAt,
	}
}

// Provider returns the provider name (embedding or llm).
func (b Budget) Provider() string { return b.provider }

// TokensUsed returns tokens consumed in the period.
func (b Budget) TokensUsed() int64 { return b.tokensUsed }

// TokensLimit returns the token cap, 0 when unlimited.
func (b Budget) TokensLimit() int64 { return b.tokensLimit }

// TokensRemaining returns tokens left, -1 when unlimited.
func (b Budget) TokensRemaining() int64 { return b.tokensRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// Report is an AI usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	budgets     []Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, budgets []Budget) Report {
	return Report{period: period, periodStart: start, periodEnd: end, budgets: budgets}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Budgets returns per-provider budgets.
func (r *Report) Budgets() []Budget { return r.budgets }
