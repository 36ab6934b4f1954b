package es

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/domain/model"
	"github.com/LouYuanbo1/komprice/internal/logger"
)

// fakeES answers the handful of endpoints the listing client uses.
type fakeES struct {
	mu          sync.Mutex
	indexExists bool
	created     bool
	deleted     bool
	indexed     []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	index := "/" + model.ListingIndex
	switch {
	case r.Method == http.MethodHead && r.URL.Path == index:
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == index:
		f.created, f.indexExists = true, true
		fmt.Fprintf(w, `{"acknowledged":true,"shards_acknowledged":true,"index":%q}`, model.ListingIndex)
	case r.Method == http.MethodDelete && r.URL.Path == index:
		f.deleted, f.indexExists = true, false
		fmt.Fprint(w, `{"acknowledged":true}`)
	case strings.HasSuffix(r.URL.Path, "/_count"):
		fmt.Fprint(w, `{"count":3,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0}}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		fmt.Fprintf(w, `{"took":1,"timed_out":false,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0},
			"hits":{"total":{"value":1,"relation":"eq"},"max_score":1.0,"hits":[
			{"_index":%q,"_id":"p-1","_score":1.0,"_source":{"product_id":"p-1","title":"Tecno Spark 20","site_id":"JUMIA","price":1299.5}}]}}`,
			model.ListingIndex)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		var items []string
		sc := bufio.NewScanner(r.Body)
		for line := 0; sc.Scan(); line++ {
			if line%2 != 0 {
				continue
			}
			var meta map[string]struct {
				ID string `json:"_id"`
			}
			_ = json.Unmarshal(sc.Bytes(), &meta)
			id := meta["index"].ID
			f.indexed = append(f.indexed, id)
			items = append(items, fmt.Sprintf(`{"index":{"_index":%q,"_id":%q,"status":201,"result":"created"}}`, model.ListingIndex, id))
		}
		fmt.Fprintf(w, `{"took":1,"errors":false,"items":[%s]}`, strings.Join(items, ","))
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}
}

func newClient(t *testing.T, fake *fakeES) TypedEsClient[*model.ListingDoc] {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := &config.Config{}
	cfg.Elasticsearch.Address = srv.URL
	c, err := InitTypedEsClient[*model.ListingDoc](cfg, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestCreateIndexWithMapping(t *testing.T) {
	fake := &fakeES{}
	c := newClient(t, fake)

	require.NoError(t, c.CreateIndexWithMapping(context.Background()))
	assert.True(t, fake.created)

	fake.created = false
	require.NoError(t, c.CreateIndexWithMapping(context.Background()))
	assert.False(t, fake.created)
}

func TestDeleteIndex(t *testing.T) {
	fake := &fakeES{}
	c := newClient(t, fake)

	require.NoError(t, c.DeleteIndex(context.Background()))
	assert.False(t, fake.deleted, "missing index is left alone")

	fake.indexExists = true
	require.NoError(t, c.DeleteIndex(context.Background()))
	assert.True(t, fake.deleted)
	assert.False(t, fake.indexExists)
}

func TestBulkIndexDocsWithID(t *testing.T) {
	fake := &fakeES{indexExists: true}
	c := newClient(t, fake)

	docs := []*model.ListingDoc{
		{ProductID: "p-1", Title: "Tecno Spark 20", ScrapedAt: time.Now()},
		{ProductID: "p-2", Title: "Infinix Hot 40", ScrapedAt: time.Now()},
	}
	require.NoError(t, c.BulkIndexDocsWithID(context.Background(), docs))
	assert.ElementsMatch(t, []string{"p-1", "p-2"}, fake.indexed)

	require.NoError(t, c.BulkIndexDocsWithID(context.Background(), nil))
}

func TestSearchAndCount(t *testing.T) {
	c := newClient(t, &fakeES{indexExists: true})

	docs, total, err := c.SearchDoc(context.Background(), &types.Query{
		Match: map[string]types.MatchQuery{"title": {Query: "tecno"}},
	}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "Tecno Spark 20", docs[0].Title)
	assert.Equal(t, 1299.5, docs[0].Price)

	n, err := c.CountDocs(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
