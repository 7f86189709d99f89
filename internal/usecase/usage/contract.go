package usage

import "github.com/kailas-cloud/recodex/internal/usecase/budget"

// BudgetReader provides read-only access to one provider's token budget.
type BudgetReader interface {
	Provider() string
	Snapshot() budget.Snapshot
}
