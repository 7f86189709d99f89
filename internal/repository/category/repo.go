// Package category reads the active category tree from Postgres.
package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/recodex/internal/db/postgres"
	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/category"
)

const (
	byExactNameQuery = `SELECT id, name, parent_id FROM categories
WHERE name = $1 AND deleted_at IS NULL
ORDER BY id
LIMIT 1`

	byIDQuery = `SELECT id, name, parent_id FROM categories
WHERE id = $1 AND deleted_at IS NULL`

	bestFuzzyQuery = `SELECT id, name, parent_id, similarity(name, $1) AS sim FROM categories
WHERE deleted_at IS NULL AND similarity(name, $1) > $2
ORDER BY sim DESC, id
LIMIT 1`

	childrenQuery = `SELECT id, name, parent_id FROM categories
WHERE parent_id = $1 AND deleted_at IS NULL
ORDER BY id`

	namesQuery = `SELECT name FROM categories
WHERE deleted_at IS NULL
ORDER BY id`
)

// Repo implements the category store contract.
type Repo struct {
	db *sql.DB
}

// New creates a category repository.
func New(s *postgres.Store) *Repo {
	return &Repo{db: s.DB()}
}

// ByExactName finds an active category by case-sensitive name.
func (r *Repo) ByExactName(ctx context.Context, name string) (category.Category, error) {
	return r.one(ctx, "by name", byExactNameQuery, name)
}

// ByID finds an active category by id.
func (r *Repo) ByID(ctx context.Context, id int64) (category.Category, error) {
	return r.one(ctx, "by id", byIDQuery, id)
}

// BestFuzzyMatch returns the most trigram-similar active category scoring above threshold.
func (r *Repo) BestFuzzyMatch(ctx context.Context, guess string, threshold float64) (category.Category, float64, error) {
	var (
		c      category.Category
		parent sql.NullInt64
		sim    float64
	)
	err := r.db.QueryRowContext(ctx, bestFuzzyQuery, guess, threshold).Scan(&c.ID, &c.Name, &parent, &sim)
	if errors.Is(err, sql.ErrNoRows) {
		return category.Category{}, 0, domain.ErrNotFound
	}
	if err != nil {
		return category.Category{}, 0, fmt.Errorf("category fuzzy match: %w: %w", domain.ErrStoreUnavailable, err)
	}
	c.ParentID = nullID(parent)
	return c, sim, nil
}

// Children lists the active direct children of a category.
func (r *Repo) Children(ctx context.Context, parentID int64) ([]category.Category, error) {
	rows, err := r.db.QueryContext(ctx, childrenQuery, parentID)
	if err != nil {
		return nil, fmt.Errorf("category children: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []category.Category
	for rows.Next() {
		var (
			c      category.Category
			parent sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &parent); err != nil {
			return nil, fmt.Errorf("category children scan: %w", err)
		}
		c.ParentID = nullID(parent)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category children rows: %w", err)
	}
	return out, nil
}

// Names lists every active category name, used as the LLM hint list.
func (r *Repo) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, namesQuery)
	if err != nil {
		return nil, fmt.Errorf("category names: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("category names scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category names rows: %w", err)
	}
	return out, nil
}

func (r *Repo) one(ctx context.Context, op, query string, arg any) (category.Category, error) {
	var (
		c      category.Category
		parent sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return category.Category{}, domain.ErrNotFound
	}
	if err != nil {
		return category.Category{}, fmt.Errorf("category %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	c.ParentID = nullID(parent)
	return c, nil
}

func nullID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
