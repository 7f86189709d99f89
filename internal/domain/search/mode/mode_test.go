package mode

import "testing"

func TestIsValid(t *testing.T) {
	valid := []Mode{WeightedSum, VectorOnly}
	for _, m := range valid {
		if !m.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", m)
		}
	}

	invalid := []Mode{"", "hybrid", "rrf", "WEIGHTED_SUM"}
	for _, m := range invalid {
		if m.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", m)
		}
	}
}

func TestUsesKeywords(t *testing.T) {
	if !WeightedSum.UsesKeywords() {
		t.Error("weighted_sum must use keywords")
	}
	if VectorOnly.UsesKeywords() {
		t.Error("vector_only must skip keywords")
	}
}

func TestDistance_IsValid(t *testing.T) {
	if !L2.IsValid() || !Cosine.IsValid() {
		t.Error("l2 and cosine must be valid")
	}
	if Distance("ip").IsValid() {
		t.Error("inner product is not supported")
	}
}
