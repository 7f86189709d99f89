// Package candidate holds a product scored by one or both retrieval paths.
package candidate

import "github.com/kailas-cloud/recodex/internal/domain/product"

// Candidate is a retrieved product with its per-path and fused scores.
type Candidate struct {
	product      product.Product
	vectorScore  float64
	keywordScore float64
	hasVector    bool
	hasKeyword   bool
	score        float64
}

// FromVector creates a vector-path candidate. The fused score starts as the vector score.
func FromVector(p product.Product, similarity float64) Candidate {
	return Candidate{product: p, vectorScore: similarity, hasVector: true, score: similarity}
}

// FromKeyword creates a keyword-path candidate. The fused score starts as the keyword score.
func FromKeyword(p product.Product, similarity float64) Candidate {
	return Candidate{product: p, keywordScore: similarity, hasKeyword: true, score: similarity}
}

// Product returns the catalog entry.
func (c *Candidate) Product() product.Product { return c.product }

// Code returns the product code, the fusion key.
func (c *Candidate) Code() string { return c.product.Code }

// VectorScore returns the vector similarity and whether the vector path matched.
func (c *Candidate) VectorScore() (float64, bool) { return c.vectorScore, c.hasVector }

// KeywordScore returns the lexical similarity and whether the keyword path matched.
func (c *Candidate) KeywordScore() (float64, bool) { return c.keywordScore, c.hasKeyword }

// Score returns the fused score.
func (c *Candidate) Score() float64 { return c.score }

// WithKeyword returns a copy carrying a keyword match and the given fused score.
func (c Candidate) WithKeyword(similarity, fused float64) Candidate {
	c.keywordScore = similarity
	c.hasKeyword = true
	c.score = fused
	return c
}

// VectorHit is a raw vector-path match before distance is turned into a score.
type VectorHit struct {
	Product  product.Product
	Distance float64
}

// Similarity remaps a pgvector distance onto [0,1] as max(0, 1 - d/2).
// It assumes normalized embeddings whose distances fall roughly within [0,2].
func (h VectorHit) Similarity() float64 {
	return max(0, 1-h.Distance/2)
}
