package category

import (
	"context"

	"github.com/kailas-cloud/recodex/internal/domain/category"
)

// Repository is the category store contract.
type Repository interface {
	ByExactName(ctx context.Context, name string) (category.Category, error)
	ByID(ctx context.Context, id int64) (category.Category, error)
	BestFuzzyMatch(ctx context.Context, guess string, threshold float64) (category.Category, float64, error)
	Children(ctx context.Context, parentID int64) ([]category.Category, error)
	Names(ctx context.Context) ([]string, error)
}
