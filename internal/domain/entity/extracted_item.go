package entity

import (
	"database/sql"
	"time"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/google/uuid"
)

// ExtractedItem is one listing card read off a page, before persistence.
type ExtractedItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Price        float64   `json:"price"`
	AffiliateURL string    `json:"affiliate_url"`
	ImageURL     string    `json:"image_url"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// NewExtractedItem stamps a fresh id and scrape time.
func NewExtractedItem(title string, price float64, affiliateURL, imageURL string, now time.Time) ExtractedItem {
	return ExtractedItem{
		ID:           uuid.NewString(),
		Title:        title,
		Price:        price,
		AffiliateURL: affiliateURL,
		ImageURL:     imageURL,
		ScrapedAt:    now.UTC(),
	}
}

// Complete reports whether the item carries every field a listing needs.
func (e ExtractedItem) Complete() bool {
	return e.Title != "" && e.AffiliateURL != "" && e.ImageURL != ""
}

func (e ExtractedItem) ToProduct(categoryID sql.NullInt64) model.Product {
	return model.Product{
		ID:                  e.ID,
		Title:               e.Title,
		UniversalCategoryID: categoryID,
		CreatedAt:           e.ScrapedAt,
	}
}

func (e ExtractedItem) ToListing(siteID, vendorSlug string) model.VendorListing {
	return model.VendorListing{
		ProductID:      e.ID,
		SiteID:         siteID,
		SiteCategoryID: vendorSlug,
		Price:          e.Price,
		Currency:       model.DefaultCurrency,
		AffiliateURL:   e.AffiliateURL,
		ImageURL:       e.ImageURL,
		StockStatus:    true,
		ScrapedAt:      e.ScrapedAt,
	}
}

func (e ExtractedItem) ToDocument(siteID, vendorSlug, universalSlug string) *model.ListingDoc {
	return &model.ListingDoc{
		ProductID:         e.ID,
		Title:             e.Title,
		SiteID:            siteID,
		SiteCategory:      vendorSlug,
		UniversalCategory: universalSlug,
		Price:             e.Price,
		Currency:          model.DefaultCurrency,
		AffiliateURL:      e.AffiliateURL,
		ImageURL:          e.ImageURL,
		InStock:           true,
		ScrapedAt:         e.ScrapedAt,
	}
}
