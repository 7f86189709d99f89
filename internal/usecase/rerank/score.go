package rerank

import "github.com/kailas-cloud/recodex/internal/domain/product"

// PerformanceScore blends retrieval confidence with review signals:
// min(1, score*0.7 + rating/25 + min(reviews/1000, 0.1)).
func PerformanceScore(score float64, p product.Product) float64 {
	reviews := min(float64(p.ReviewCount)/1000, 0.1)
	return max(0, min(1, score*0.7+p.Rating()/25+reviews))
}

// LowestPrices marks the products priced at the minimum of the batch.
// Every product sharing the minimum is marked.
func LowestPrices(products []product.Product) map[string]bool {
	out := make(map[string]bool, len(products))
	if len(products) == 0 {
		return out
	}
	lowest := products[0].Price
	for _, p := range products[1:] {
		lowest = min(lowest, p.Price)
	}
	for _, p := range products {
		out[p.Code] = p.Price == lowest
	}
	return out
}
