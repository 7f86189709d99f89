package rerank

import (
	"math"
	"testing"

	"github.com/kailas-cloud/recodex/internal/domain/product"
)

func rated(count int, rating float64) product.Product {
	return product.Product{ReviewCount: count, ReviewRating: &rating}
}

func TestPerformanceScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		p     product.Product
		want  float64
	}{
		{"no reviews", 0.8, product.Product{}, 0.56},
		{"rating and few reviews", 0.8, rated(50, 4.5), 0.56 + 0.18 + 0.05},
		{"review bonus capped", 0.5, rated(10_000, 0), 0.35 + 0.1},
		{"capped at one", 1, rated(10_000, 5), 1},
		{"zero", 0, product.Product{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PerformanceScore(tt.score, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PerformanceScore = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestPerformanceScore_Bounded(t *testing.T) {
	for _, s := range []float64{0, 0.3, 0.6, 0.99, 1} {
		for _, n := range []int{0, 10, 999, 10_000, 1 << 20} {
			for _, r := range []float64{0, 2.5, 5} {
				got := PerformanceScore(s, rated(n, r))
				if got < 0 || got > 1 {
					t.Fatalf("score=%g reviews=%d rating=%g -> %g", s, n, r, got)
				}
			}
		}
	}
}

func TestLowestPrices(t *testing.T) {
	got := LowestPrices([]product.Product{
		{Code: "a", Price: 300},
		{Code: "b", Price: 100},
		{Code: "c", Price: 100},
		{Code: "d", Price: 200},
	})
	want := map[string]bool{"a": false, "b": true, "c": true, "d": false}
	for code, w := range want {
		if got[code] != w {
			t.Errorf("%s: got %v, want %v", code, got[code], w)
		}
	}
	if len(LowestPrices(nil)) != 0 {
		t.Error("empty batch must produce an empty map")
	}
}
