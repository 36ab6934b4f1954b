package entity

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
)

func TestNewExtractedItem(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("GMT+1", 3600))
	a := NewExtractedItem("Tecno Spark 20", 1299.5, "https://x.test/p/1", "https://x.test/i/1.jpg", now)
	b := NewExtractedItem("Tecno Spark 20", 1299.5, "https://x.test/p/1", "https://x.test/i/1.jpg", now)

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.ScrapedAt.Location())
	assert.True(t, a.Complete())
}

func TestComplete(t *testing.T) {
	item := ExtractedItem{Title: "t", AffiliateURL: "https://x.test/p", ImageURL: ""}
	assert.False(t, item.Complete())
}

func TestToRows(t *testing.T) {
	item := NewExtractedItem("Infinix Hot 40", 0, "https://x.test/p/2", "https://x.test/i/2.jpg", time.Now())
	cat := sql.NullInt64{Int64: 7, Valid: true}

	p := item.ToProduct(cat)
	assert.Equal(t, item.ID, p.ID)
	assert.Equal(t, cat, p.UniversalCategoryID)

	l := item.ToListing("JUMIA", "smartphones")
	assert.Equal(t, item.ID, l.ProductID)
	assert.Equal(t, model.DefaultCurrency, l.Currency)
	assert.True(t, l.StockStatus)
	assert.Equal(t, "smartphones", l.SiteCategoryID)

	doc := item.ToDocument("JUMIA", "smartphones", "phones-tablets")
	assert.Equal(t, item.ID, doc.GetID())
	assert.Equal(t, model.ListingIndex, doc.GetIndex())
	assert.Contains(t, doc.GetTypeMapping().Properties, "universal_category")
}
