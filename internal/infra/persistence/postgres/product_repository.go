package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
)

const (
	DefaultSearchLimit = 5000
	MaxSearchLimit     = 10000
)

// ProductFilter narrows a product search. Empty values disable a filter;
// a price bound applies whenever it is set, zero included.
type ProductFilter struct {
	Query      string
	Categories []string
	Sites      []string
	MinPrice   *float64
	MaxPrice   *float64
	Limit      int
}

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Search runs a full-text search on product titles. When nothing matches a
// multi-word query, it retries with the first word only.
func (r *ProductRepository) Search(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	products, err := r.search(ctx, f)
	if err != nil {
		return nil, err
	}
	if words := strings.Fields(f.Query); len(products) == 0 && len(words) > 1 {
		f.Query = words[0]
		if products, err = r.search(ctx, f); err != nil {
			return nil, err
		}
	}
	if err := r.attachListings(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func buildSearch(f ProductFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "to_tsvector('english', p.title) @@ plainto_tsquery('english', "+arg(q)+")")
	}
	if len(f.Categories) > 0 {
		where = append(where, "c.slug = ANY("+arg(pq.Array(f.Categories))+")")
	}
	var listing []string
	if len(f.Sites) > 0 {
		sites := make([]string, len(f.Sites))
		for i, s := range f.Sites {
			sites[i] = strings.ToLower(s)
		}
		listing = append(listing, "lower(vl.site_id) = ANY("+arg(pq.Array(sites))+")")
	}
	if f.MinPrice != nil {
		listing = append(listing, "vl.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		listing = append(listing, "vl.price <= "+arg(*f.MaxPrice))
	}
	if len(listing) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM vendor_listing vl WHERE vl.product_id = p.id AND "+strings.Join(listing, " AND ")+")")
	}

	query := `SELECT p.id, p.title, p.universal_category_id, p.created_at
FROM product p
LEFT JOIN category c ON c.id = p.universal_category_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, "\nAND ")
	}
	query += "\nORDER BY p.created_at DESC\nLIMIT " + arg(clampLimit(f.Limit))
	return query, args
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

func (r *ProductRepository) search(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	query, args := buildSearch(f)
	products := []model.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) attachListings(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
		products[i].Listings = []model.VendorListing{}
	}

	var listings []model.VendorListing
	err := r.db.SelectContext(ctx, &listings,
		`SELECT id, product_id, site_id, site_category_id, price, currency, affiliate_url, image_url, stock_status, scraped_at
FROM vendor_listing WHERE product_id = ANY($1::uuid[]) ORDER BY price`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	for _, l := range listings {
		if i, ok := index[l.ProductID]; ok {
			products[i].Listings = append(products[i].Listings, l)
		}
	}
	return nil
}
