// Package catalog queries products with pgvector and pg_trgm.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/recodex/internal/db/postgres"
	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/product"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/filter"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
)

const productColumns = `p.id, p.danawa_product_id, p.name, COALESCE(p.brand, ''), p.lowest_price,
	COALESCE(p.category_id, 0), COALESCE(p.product_status, ''), COALESCE(p.detail_spec::text, ''),
	COALESCE(p.review_count, 0), p.review_rating`

// Shared hard filter. $2 categories, $3 min price, $4 max price.
const filterClause = `
	AND (cardinality($2::bigint[]) = 0 OR p.category_id = ANY($2::bigint[]))
	AND ($3::bigint IS NULL OR p.lowest_price >= $3)
	AND ($4::bigint IS NULL OR p.lowest_price <= $4)`

var vectorQueries = map[mode.Distance]string{
	mode.L2:     vectorQuery("<->"),
	mode.Cosine: vectorQuery("<=>"),
}

// vectorQuery builds the vector path for a pgvector operator.
// $1 query vector, $5 excluded statuses, $6 limit.
func vectorQuery(op string) string {
	return `SELECT ` + productColumns + `, p.detail_spec_vector ` + op + ` $1::vector AS distance
FROM products p
WHERE p.deleted_at IS NULL
	AND p.detail_spec_vector IS NOT NULL
	AND NOT (COALESCE(p.product_status, '') = ANY($5::text[]))` + filterClause + `
ORDER BY distance, p.danawa_product_id
LIMIT $6`
}

// keywordQuery is the lexical path. $1 keyword text, $5 similarity floor, $6 limit.
const keywordQuery = `SELECT ` + productColumns + `, similarity(p.name, $1) AS sim
FROM products p
WHERE p.deleted_at IS NULL
	AND similarity(p.name, $1) > $5` + filterClause + `
ORDER BY sim DESC, p.danawa_product_id
LIMIT $6`

const mallInfoQuery = `SELECT DISTINCT ON (product_id) product_id,
	COALESCE(representative_image_url, ''), COALESCE(product_page_url, '')
FROM mall_information
WHERE product_id = ANY($1::bigint[]) AND deleted_at IS NULL
ORDER BY product_id, created_at DESC`

// Repo implements the product store contract over Postgres.
type Repo struct {
	db *sql.DB
}

// New creates a catalog repository.
func New(s *postgres.Store) *Repo {
	return &Repo{db: s.DB()}
}

// VectorSearch returns active products closest to vec, nearest first.
func (r *Repo) VectorSearch(
	ctx context.Context, vec []float32, d mode.Distance, f filter.Filter, limit int,
) ([]candidate.VectorHit, error) {
	q, ok := vectorQueries[d]
	if !ok {
		return nil, fmt.Errorf("unsupported distance %q", d)
	}
	lit, err := postgres.EncodeVector(vec)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q,
		lit, pq.Array(f.CategoryIDs()), f.MinPrice(), f.MaxPrice(),
		pq.Array(product.ExcludedStatuses()), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var hits []candidate.VectorHit
	for rows.Next() {
		var h candidate.VectorHit
		if err := scanProduct(rows, &h.Product, &h.Distance); err != nil {
			return nil, fmt.Errorf("vector search scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search rows: %w", err)
	}
	return hits, nil
}

// KeywordSearch returns products whose name is trigram-similar to text above floor.
func (r *Repo) KeywordSearch(
	ctx context.Context, text string, floor float64, f filter.Filter, limit int,
) ([]candidate.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, keywordQuery,
		text, pq.Array(f.CategoryIDs()), f.MinPrice(), f.MaxPrice(), floor, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []candidate.Candidate
	for rows.Next() {
		var (
			p   product.Product
			sim float64
		)
		if err := scanProduct(rows, &p, &sim); err != nil {
			return nil, fmt.Errorf("keyword search scan: %w", err)
		}
		out = append(out, candidate.FromKeyword(p, sim))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyword search rows: %w", err)
	}
	return out, nil
}

// MallInfo returns the latest display metadata per product id.
// Products without a live mall row are absent from the map.
func (r *Repo) MallInfo(ctx context.Context, productIDs []int64) (map[int64]product.MallInfo, error) {
	out := make(map[int64]product.MallInfo, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, mallInfoQuery, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("mall info: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			mi product.MallInfo
		)
		if err := rows.Scan(&id, &mi.ImageURL, &mi.PageURL); err != nil {
			return nil, fmt.Errorf("mall info scan: %w", err)
		}
		out[id] = mi
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mall info rows: %w", err)
	}
	return out, nil
}

// scanProduct reads productColumns followed by one score column.
func scanProduct(rows *sql.Rows, p *product.Product, score *float64) error {
	var (
		status string
		rating sql.NullFloat64
	)
	if err := rows.Scan(
		&p.ID, &p.Code, &p.Name, &p.Brand, &p.Price,
		&p.CategoryID, &status, &p.RawSpec,
		&p.ReviewCount, &rating, score,
	); err != nil {
		return err
	}
	p.Status = product.Status(status)
	if rating.Valid {
		v := rating.Float64
		p.ReviewRating = &v
	}
	p.Spec, p.SpecSummary = decodeDetailSpec(p.RawSpec)
	return nil
}
