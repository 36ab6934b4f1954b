package model

import (
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document 所有写入es的文档都要实现这个接口
type Document interface {
	*ListingDoc
	GetID() string
	GetIndex() string
	GetTypeMapping() *types.TypeMapping
}

const ListingIndex = "komprice_listings"

// ListingDoc is the search-index view of one scraped listing.
type ListingDoc struct {
	ProductID         string    `json:"product_id"`
	Title             string    `json:"title"`
	SiteID            string    `json:"site_id"`
	SiteCategory      string    `json:"site_category"`
	UniversalCategory string    `json:"universal_category"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	AffiliateURL      string    `json:"affiliate_url"`
	ImageURL          string    `json:"image_url"`
	InStock           bool      `json:"in_stock"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

func (d *ListingDoc) GetID() string {
	return d.ProductID
}

func (d *ListingDoc) GetIndex() string {
	return ListingIndex
}

func (d *ListingDoc) GetTypeMapping() *types.TypeMapping {
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"product_id":         types.NewKeywordProperty(),
			"title":              types.NewTextProperty(),
			"site_id":            types.NewKeywordProperty(),
			"site_category":      types.NewKeywordProperty(),
			"universal_category": types.NewKeywordProperty(),
			"price":              types.NewDoubleNumberProperty(),
			"currency":           types.NewKeywordProperty(),
			"affiliate_url":      types.NewKeywordProperty(),
			"image_url":          types.NewKeywordProperty(),
			"in_stock":           types.NewBooleanProperty(),
			"scraped_at":         types.NewDateProperty(),
		},
	}
}
