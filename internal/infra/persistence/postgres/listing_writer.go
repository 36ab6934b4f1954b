package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/LouYuanbo1/komprice/internal/domain/entity"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/taxonomy"
)

const (
	insertProduct = `INSERT INTO product (id, title, universal_category_id, created_at)
VALUES ($1, $2, $3, $4)`
	insertVendorListing = `INSERT INTO vendor_listing
(product_id, site_id, site_category_id, price, currency, affiliate_url, image_url, stock_status, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// ListingWriter persists extracted batches as product and vendor_listing rows.
type ListingWriter struct {
	db      *sqlx.DB
	aliases *taxonomy.AliasMap
	log     logger.Logger
}

func NewListingWriter(db *sqlx.DB, aliases *taxonomy.AliasMap, log logger.Logger) *ListingWriter {
	return &ListingWriter{db: db, aliases: aliases, log: log}
}

// SaveBatch writes all items in one transaction. Any failure rolls the whole
// batch back so the caller can retry it as a unit.
func (w *ListingWriter) SaveBatch(ctx context.Context, items []entity.ExtractedItem, siteID, vendorSlug string) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	universal := w.aliases.Resolve(vendorSlug)
	categoryID, err := lookupCategoryID(ctx, tx, universal)
	if err != nil {
		return err
	}
	if !categoryID.Valid {
		w.log.Warn("category not found, saving without category",
			logger.String("site", siteID),
			logger.String("category", vendorSlug),
			logger.String("universal", universal),
		)
	}

	for _, item := range items {
		p := item.ToProduct(categoryID)
		if _, err = tx.ExecContext(ctx, insertProduct, p.ID, p.Title, p.UniversalCategoryID, p.CreatedAt); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
		l := item.ToListing(siteID, vendorSlug)
		if _, err = tx.ExecContext(ctx, insertVendorListing,
			l.ProductID, l.SiteID, l.SiteCategoryID, l.Price, l.Currency,
			l.AffiliateURL, l.ImageURL, l.StockStatus, l.ScrapedAt,
		); err != nil {
			return fmt.Errorf("insert vendor listing %s: %w", l.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	w.log.Info("batch saved", logger.String("site", siteID), logger.String("category", vendorSlug), logger.Int("items", len(items)))
	return nil
}
