package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
	"github.com/LouYuanbo1/komprice/param"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"scrape", "enqueue", "worker", "serve", "migrate", "bootstrap"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, []dispatch.Result{
		{Report: scraper.RunReport{
			Job:       param.Job{SiteID: "JUMIA", CategorySlug: "smartphones"},
			Universal: "phones-tablets",
			Pages:     3,
			Batches:   2,
			Items:     80,
			Dropped:   1,
			Duration:  12 * time.Second,
		}},
		{
			Report: scraper.RunReport{Job: param.Job{SiteID: "ISTARI", CategorySlug: "laptops"}, Pages: 1},
			Err:    errors.New("navigate failed"),
		},
	})
	out := buf.String()
	assert.Contains(t, out, "JUMIA")
	assert.Contains(t, out, "phones-tablets")
	assert.Contains(t, out, "12s")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "80")
	assert.Equal(t, 1, failedRuns([]dispatch.Result{{}, {Err: errors.New("x")}}))
}

func TestSelectJobs(t *testing.T) {
	dir := t.TempDir()
	jobsPath := filepath.Join(dir, "category_settings.yaml")
	require.NoError(t, os.WriteFile(jobsPath, []byte("- site: JUMIA\n  category: smartphones\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "istari.yaml"), []byte(`laptops:
  url: https://istari.com.gh/laptops
  item: li.product
  title: h2
  price: span.price
  link: a
  img: img
  pagination:
    type: path
    template: /page/{n}/
`), 0o644))

	cfg := &config.Config{}
	cfg.Paths.Jobs = jobsPath
	planner := dispatch.NewPlanner(scraper.DefaultRegistry(), dir, logger.NewNop())

	jobs, err := selectJobs(cfg, planner, "", "")
	require.NoError(t, err)
	assert.Equal(t, []param.Job{{SiteID: "JUMIA", CategorySlug: "smartphones"}}, jobs)

	jobs, err = selectJobs(cfg, planner, "istari", "")
	require.NoError(t, err)
	assert.Equal(t, []param.Job{{SiteID: "ISTARI", CategorySlug: "laptops"}}, jobs)

	_, err = selectJobs(cfg, planner, "", "laptops")
	assert.Error(t, err)
}

type recordingIndex struct {
	calls     []string
	deleteErr error
}

func (r *recordingIndex) CreateIndexWithMapping(context.Context) error {
	r.calls = append(r.calls, "create")
	return nil
}

func (r *recordingIndex) DeleteIndex(context.Context) error {
	r.calls = append(r.calls, "delete")
	return r.deleteErr
}

func TestPrepareListingIndex(t *testing.T) {
	idx := &recordingIndex{}
	require.NoError(t, prepareListingIndex(context.Background(), idx, false))
	assert.Equal(t, []string{"create"}, idx.calls)

	idx = &recordingIndex{}
	require.NoError(t, prepareListingIndex(context.Background(), idx, true))
	assert.Equal(t, []string{"delete", "create"}, idx.calls)

	idx = &recordingIndex{deleteErr: errors.New("forbidden")}
	assert.Error(t, prepareListingIndex(context.Background(), idx, true))
	assert.Equal(t, []string{"delete"}, idx.calls)

	assert.NotNil(t, newBootstrapCommand().Flags().Lookup("reset-index"))
}
