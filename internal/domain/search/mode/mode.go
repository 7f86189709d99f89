package mode

// Mode is the fusion strategy of a recommendation flow.
type Mode string

// Fusion mode constants.
const (
	// WeightedSum blends vector and keyword scores (single-shot flow).
	WeightedSum Mode = "weighted_sum"
	// VectorOnly ranks by vector similarity with review tie-breaks (research flow).
	// The keyword path is not queried.
	VectorOnly Mode = "vector_only"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == WeightedSum || m == VectorOnly
}

// UsesKeywords reports whether the keyword path contributes to the ranking.
func (m Mode) UsesKeywords() bool {
	return m == WeightedSum
}

// Distance is the pgvector operator used by the vector path.
type Distance string

// Distance constants.
const (
	L2     Distance = "l2"
	Cosine Distance = "cosine"
)

// IsValid checks if the distance is supported.
func (d Distance) IsValid() bool {
	return d == L2 || d == Cosine
}
