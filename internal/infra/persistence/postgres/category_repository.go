package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const selectCategoryID = `SELECT id FROM category WHERE slug = $1`

type CategoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// lookupCategoryID returns a NULL id when slug has no category row.
func lookupCategoryID(ctx context.Context, q sqlx.QueryerContext, slug string) (sql.NullInt64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, selectCategoryID, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, nil
	}
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("lookup category %q: %w", slug, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (r *CategoryRepository) LookupID(ctx context.Context, slug string) (sql.NullInt64, error) {
	return lookupCategoryID(ctx, r.db, slug)
}

// EnsureCategories inserts every universal slug and its children, linking
// children to their parent. Existing rows are left alone. It returns the
// number of rows created.
func (r *CategoryRepository) EnsureCategories(ctx context.Context, universal []string, children map[string][]string) (created int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert := func(slug string, parent sql.NullInt64) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO category (slug, parent_id) VALUES ($1, $2) ON CONFLICT (slug) DO NOTHING`,
			slug, parent)
		if err != nil {
			return fmt.Errorf("insert category %q: %w", slug, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			created += n
		}
		return nil
	}

	for _, slug := range universal {
		if err = insert(slug, sql.NullInt64{}); err != nil {
			return 0, err
		}
		var parentID sql.NullInt64
		if parentID, err = lookupCategoryID(ctx, tx, slug); err != nil {
			return 0, err
		}
		for _, child := range children[slug] {
			if child == slug {
				continue
			}
			if err = insert(child, parentID); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit categories: %w", err)
	}
	return created, nil
}

func (r *CategoryRepository) ListSlugs(ctx context.Context) ([]string, error) {
	slugs := []string{}
	if err := r.db.SelectContext(ctx, &slugs, `SELECT slug FROM category ORDER BY slug`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return slugs, nil
}
