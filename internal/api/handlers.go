package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/gin-gonic/gin"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
)

const (
	pingTimeout        = 2 * time.Second
	defaultListingSize = 50
	maxListingSize     = 500
)

var errBadQuery = errors.New("invalid query parameter")

type handler struct {
	Deps
}

type siteOut struct {
	SiteID  string `json:"site_id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

type categoryOut struct {
	Slug string `json:"slug"`
}

type listingsOut struct {
	Total int64               `json:"total"`
	Items []*model.ListingDoc `json:"items"`
}

func (h *handler) health(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "komprice"})
}

func (h *handler) products(c *gin.Context) {
	f, err := productFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	products, err := h.Products.Search(c.Request.Context(), f)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handler) categories(c *gin.Context) {
	slugs, err := h.Categories.ListSlugs(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	out := make([]categoryOut, 0, len(slugs))
	for _, s := range slugs {
		out = append(out, categoryOut{Slug: s})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) categoryTree(c *gin.Context) {
	tree := h.Tree
	if tree == nil {
		tree = map[string][]string{}
	}
	c.JSON(http.StatusOK, tree)
}

func (h *handler) sites(c *gin.Context) {
	out := make([]siteOut, 0, len(h.Sites))
	for _, id := range h.Sites.IDs() {
		s := h.Sites[id]
		out = append(out, siteOut{SiteID: strings.ToLower(s.ID), Name: s.Name, BaseURL: s.BaseURL})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) searchListings(c *gin.Context) {
	size, err := intParam(c, "size", defaultListingSize, 1, maxListingSize)
	if err != nil {
		badRequest(c, err)
		return
	}
	from, err := intParam(c, "from", 0, 0, 10000)
	if err != nil {
		badRequest(c, err)
		return
	}
	query := listingQuery(c.Query("q"), splitList(c.Query("site_id")), splitList(c.Query("category")))
	docs, total, err := h.Listings.SearchDoc(c.Request.Context(), query, from, size)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingsOut{Total: total, Items: docs})
}

func (h *handler) listing(c *gin.Context) {
	doc, err := h.Listings.GetDoc(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c, err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// listingQuery matches q on titles and filters on site and universal category.
func listingQuery(q string, sites, categories []string) *types.Query {
	boolQuery := &types.BoolQuery{}
	if q = strings.TrimSpace(q); q != "" {
		boolQuery.Must = append(boolQuery.Must, types.Query{
			Match: map[string]types.MatchQuery{"title": {Query: q}},
		})
	} else {
		boolQuery.Must = append(boolQuery.Must, types.Query{MatchAll: &types.MatchAllQuery{}})
	}
	if len(sites) > 0 {
		values := make([]types.FieldValue, 0, len(sites))
		for _, s := range sites {
			values = append(values, strings.ToUpper(s))
		}
		boolQuery.Filter = append(boolQuery.Filter, types.Query{
			Terms: &types.TermsQuery{TermsQuery: map[string]types.TermsQueryField{"site_id": values}},
		})
	}
	if len(categories) > 0 {
		values := make([]types.FieldValue, 0, len(categories))
		for _, s := range categories {
			values = append(values, s)
		}
		boolQuery.Filter = append(boolQuery.Filter, types.Query{
			Terms: &types.TermsQuery{TermsQuery: map[string]types.TermsQueryField{"universal_category": values}},
		})
	}
	return &types.Query{Bool: boolQuery}
}

func productFilter(c *gin.Context) (postgres.ProductFilter, error) {
	f := postgres.ProductFilter{
		Query:      strings.TrimSpace(c.Query("q")),
		Categories: splitList(c.Query("category")),
		Sites:      splitList(c.Query("site_id")),
	}
	var err error
	if f.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(c, "limit", postgres.DefaultSearchLimit, 1, postgres.MaxSearchLimit); err != nil {
		return f, err
	}
	return f, nil
}

// priceParam returns nil when the parameter is absent.
func priceParam(c *gin.Context, name string) (*float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative number", errBadQuery, name)
	}
	return &v, nil
}

func intParam(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", errBadQuery, name, lo, hi)
	}
	return v, nil
}

// splitList splits a comma separated parameter, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
