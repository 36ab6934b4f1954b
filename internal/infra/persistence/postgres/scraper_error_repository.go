package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type ScraperErrorRepository struct {
	db *sqlx.DB
}

func NewScraperErrorRepository(db *sqlx.DB) *ScraperErrorRepository {
	return &ScraperErrorRepository{db: db}
}

// Record stores a failed run. categorySlug is the universal slug; unknown
// slugs are stored with a NULL category.
func (r *ScraperErrorRepository) Record(ctx context.Context, siteID, categorySlug, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scraper_error (category_id, site_id, details)
VALUES ((SELECT id FROM category WHERE slug = $1), $2, $3)`,
		categorySlug, siteID, details)
	if err != nil {
		return fmt.Errorf("record scraper error: %w", err)
	}
	return nil
}
