// Package category holds the hierarchical product category node.
package category

// Other is the sentinel category guess meaning "no idea".
const Other = "기타"

// Category is an active node of the category tree.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool { return c.ParentID == nil }

// IsUnknownGuess reports whether a category guess carries no information.
func IsUnknownGuess(guess string) bool {
	return guess == "" || guess == Other
}
