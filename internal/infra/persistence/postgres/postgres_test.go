package postgres

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/domain/entity"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/taxonomy"
)

const taxonomyYAML = `
Phones & Tablets:
  Mobile:
    - smartphones
    - mobile-phones
Computing:
`

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func aliases(t *testing.T) *taxonomy.AliasMap {
	t.Helper()
	doc, err := taxonomy.ParseDocument([]byte(taxonomyYAML))
	require.NoError(t, err)
	return taxonomy.BuildAliasMap(doc, logger.NewNop())
}

func items(n int) []entity.ExtractedItem {
	out := make([]entity.ExtractedItem, n)
	for i := range out {
		out[i] = entity.NewExtractedItem("Phone", float64(100*(i+1)), "https://shop.test/p", "https://shop.test/i.jpg", time.Now())
	}
	return out
}

func TestListingWriter_SaveBatch(t *testing.T) {
	db, mock := newMockDB(t)
	w := NewListingWriter(db, aliases(t), logger.NewNop())
	batch := items(3)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM category WHERE slug").
		WithArgs("phones-tablets").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	for _, it := range batch {
		mock.ExpectExec("INSERT INTO product").
			WithArgs(it.ID, "Phone", int64(7), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO vendor_listing").
			WithArgs(it.ID, "JUMIA", "smartphones", it.Price, "GHS", it.AffiliateURL, it.ImageURL, true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, w.SaveBatch(context.Background(), batch, "JUMIA", "smartphones"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingWriter_SaveBatch_MissingCategory(t *testing.T) {
	db, mock := newMockDB(t)
	w := NewListingWriter(db, aliases(t), logger.NewNop())
	batch := items(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM category WHERE slug").
		WithArgs("gadgets").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO product").
		WithArgs(batch[0].ID, "Phone", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO vendor_listing").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, w.SaveBatch(context.Background(), batch, "SHOPWICE", "gadgets"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingWriter_SaveBatch_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	w := NewListingWriter(db, aliases(t), logger.NewNop())
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM category").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO product").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO vendor_listing").WillReturnError(boom)
	mock.ExpectRollback()

	err := w.SaveBatch(context.Background(), items(2), "JUMIA", "smartphones")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingWriter_SaveBatch_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	w := NewListingWriter(db, aliases(t), logger.NewNop())
	require.NoError(t, w.SaveBatch(context.Background(), nil, "JUMIA", "smartphones"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_EnsureCategories(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCategoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO category").WithArgs("phones-tablets", nil).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM category WHERE slug").WithArgs("phones-tablets").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO category").WithArgs("smartphones", int64(1)).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO category").WithArgs("mobile-phones", int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO category").WithArgs("computing", nil).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM category WHERE slug").WithArgs("computing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	created, err := repo.EnsureCategories(context.Background(),
		[]string{"phones-tablets", "computing"},
		map[string][]string{"phones-tablets": {"smartphones", "mobile-phones"}, "computing": {}},
	)
	require.NoError(t, err)
	assert.EqualValues(t, 2, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_LookupAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCategoryRepository(db)

	mock.ExpectQuery("SELECT id FROM category WHERE slug").WithArgs("computing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("SELECT id FROM category WHERE slug").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT slug FROM category ORDER BY slug").
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("computing").AddRow("phones-tablets"))

	id, err := repo.LookupID(context.Background(), "computing")
	require.NoError(t, err)
	assert.True(t, id.Valid)
	assert.EqualValues(t, 3, id.Int64)

	id, err = repo.LookupID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, id.Valid)

	slugs, err := repo.ListSlugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"computing", "phones-tablets"}, slugs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var productColumns = []string{"id", "title", "universal_category_id", "created_at"}

var listingColumns = []string{
	"id", "product_id", "site_id", "site_category_id", "price", "currency",
	"affiliate_url", "image_url", "stock_status", "scraped_at",
}

func TestProductRepository_Search_FallsBackToFirstWord(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM product p").
		WithArgs("tecno spark 20", sqlmock.AnyArg(), DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows(productColumns))
	mock.ExpectQuery("FROM product p").
		WithArgs("tecno", sqlmock.AnyArg(), DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow("p-1", "Tecno Spark 20", 1, now))
	mock.ExpectQuery("FROM vendor_listing WHERE product_id").
		WillReturnRows(sqlmock.NewRows(listingColumns).
			AddRow(1, "p-1", "JUMIA", "smartphones", 1299.5, "GHS", "https://a", "https://i", true, now).
			AddRow(2, "p-1", "SHOPWICE", "phones", 1350.0, "GHS", "https://b", "https://j", true, now))

	products, err := repo.Search(context.Background(), ProductFilter{Query: "tecno spark 20", Sites: []string{"jumia"}})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tecno Spark 20", products[0].Title)
	assert.Len(t, products[0].Listings, 2)
	assert.Equal(t, "SHOPWICE", products[0].Listings[1].SiteID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Search_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("FROM product p").WithArgs("lamp", 10).WillReturnRows(sqlmock.NewRows(productColumns))

	products, err := repo.Search(context.Background(), ProductFilter{Query: "lamp", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildSearch(t *testing.T) {
	query, args := buildSearch(ProductFilter{
		Query:      "laptop",
		Categories: []string{"computing"},
		Sites:      []string{"JUMIA"},
		MinPrice:   price(100),
		MaxPrice:   price(900),
		Limit:      50000,
	})
	assert.Contains(t, query, "plainto_tsquery('english', $1)")
	assert.Contains(t, query, "c.slug = ANY($2)")
	assert.Contains(t, query, "lower(vl.site_id) = ANY($3)")
	assert.Contains(t, query, "vl.price >= $4 AND vl.price <= $5")
	assert.Contains(t, query, "LIMIT $6")
	require.Len(t, args, 6)
	assert.Equal(t, MaxSearchLimit, args[5])

	query, args = buildSearch(ProductFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []any{DefaultSearchLimit}, args)
}

func price(v float64) *float64 { return &v }

func TestBuildSearch_ZeroPriceBound(t *testing.T) {
	query, args := buildSearch(ProductFilter{MaxPrice: price(0)})
	assert.Contains(t, query, "vl.price <= $1")
	assert.NotContains(t, query, "vl.price >=")
	assert.Equal(t, []any{0.0, DefaultSearchLimit}, args)
}

func TestScraperErrorRepository_Record(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScraperErrorRepository(db)

	mock.ExpectExec("INSERT INTO scraper_error").
		WithArgs("phones-tablets", "JUMIA", "navigate: timeout").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Record(context.Background(), "JUMIA", "phones-tablets", "navigate: timeout"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"migrations/0001_init.up.sql", "migrations/0001_init.down.sql"}, names)
}
