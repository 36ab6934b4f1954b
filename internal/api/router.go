// Package api serves the scraped catalog over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/gin-gonic/gin"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
)

type ProductSearcher interface {
	Search(ctx context.Context, f postgres.ProductFilter) ([]model.Product, error)
}

type CategoryLister interface {
	ListSlugs(ctx context.Context) ([]string, error)
}

// ListingSearcher is the read side of the listing index.
type ListingSearcher interface {
	GetDoc(ctx context.Context, id string) (*model.ListingDoc, error)
	SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]*model.ListingDoc, int64, error)
}

// Deps wires the router. Listings and Metrics are optional.
type Deps struct {
	Products       ProductSearcher
	Categories     CategoryLister
	Tree           map[string][]string
	Sites          scraper.Registry
	Listings       ListingSearcher
	Metrics        http.Handler
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
	Log            logger.Logger
}

// NewRouter builds the gin engine. mode is a gin mode such as "release".
func NewRouter(mode string, deps Deps) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	h := &handler{Deps: deps}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Log))
	router.Use(CORSMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	router.GET("/products", h.products)
	router.GET("/categories", h.categories)
	router.GET("/category-tree", h.categoryTree)
	router.GET("/sites", h.sites)
	if deps.Listings != nil {
		router.GET("/listings", h.searchListings)
		router.GET("/listings/:id", h.listing)
	}
	return router
}
