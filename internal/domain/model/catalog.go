package model

import (
	"database/sql"
	"time"
)

// DefaultCurrency is stored on every listing; all tracked marketplaces sell in cedis.
const DefaultCurrency = "GHS"

type Category struct {
	ID       int64         `db:"id" json:"id"`
	Slug     string        `db:"slug" json:"slug"`
	ParentID sql.NullInt64 `db:"parent_id" json:"-"`
}

type Product struct {
	ID                  string        `db:"id" json:"id"`
	Title               string        `db:"title" json:"title"`
	UniversalCategoryID sql.NullInt64 `db:"universal_category_id" json:"-"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`

	Listings []VendorListing `db:"-" json:"listings"`
}

type VendorListing struct {
	ID             int64     `db:"id" json:"-"`
	ProductID      string    `db:"product_id" json:"-"`
	SiteID         string    `db:"site_id" json:"site_id"`
	SiteCategoryID string    `db:"site_category_id" json:"site_category_id"`
	Price          float64   `db:"price" json:"price"`
	Currency       string    `db:"currency" json:"currency"`
	AffiliateURL   string    `db:"affiliate_url" json:"affiliate_url"`
	ImageURL       string    `db:"image_url" json:"image_url"`
	StockStatus    bool      `db:"stock_status" json:"stock_status"`
	ScrapedAt      time.Time `db:"scraped_at" json:"scraped_at"`
}

// ScraperError records a run that ended in a fatal error.
type ScraperError struct {
	ID         int64         `db:"id"`
	CategoryID sql.NullInt64 `db:"category_id"`
	SiteID     string        `db:"site_id"`
	Details    string        `db:"details"`
	CreatedAt  time.Time     `db:"created_at"`
}
