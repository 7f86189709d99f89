package filter

import "fmt"

// MaxCategories bounds the descendant set sent to the store.
const MaxCategories = 1024

// Filter is the hard constraint applied to both retrieval paths.
// An empty category set means "no category filter".
type Filter struct {
	categoryIDs []int64
	minPrice    *int64
	maxPrice    *int64
}

// New validates and creates a Filter. Price bounds must already be sane.
func New(categoryIDs []int64, minPrice, maxPrice *int64) (Filter, error) {
	if len(categoryIDs) > MaxCategories {
		return Filter{}, fmt.Errorf("too many categories (max %d)", MaxCategories)
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return Filter{}, fmt.Errorf("min_price %d exceeds max_price %d", *minPrice, *maxPrice)
	}
	ids := make([]int64, len(categoryIDs))
	copy(ids, categoryIDs)
	return Filter{categoryIDs: ids, minPrice: minPrice, maxPrice: maxPrice}, nil
}

// CategoryIDs returns the allowed category ids.
func (f Filter) CategoryIDs() []int64 { return f.categoryIDs }

// MinPrice returns the inclusive lower price bound.
func (f Filter) MinPrice() *int64 { return f.minPrice }

// MaxPrice returns the inclusive upper price bound.
func (f Filter) MaxPrice() *int64 { return f.maxPrice }

// HasCategories reports whether a category constraint is set.
func (f Filter) HasCategories() bool { return len(f.categoryIDs) > 0 }

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return len(f.categoryIDs) == 0 && f.minPrice == nil && f.maxPrice == nil
}
