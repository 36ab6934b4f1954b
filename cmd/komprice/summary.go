package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
)

// renderSummary prints one row per run.
func renderSummary(w io.Writer, results []dispatch.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Site", "Category", "Universal", "Pages", "Batches", "Items", "Dropped", "Duration", "Status"})

	var pages, batches, items, dropped int
	for _, r := range results {
		rep := r.Report
		status := text.FgGreen.Sprint("ok")
		if r.Err != nil {
			status = text.FgRed.Sprint("failed")
		}
		t.AppendRow(table.Row{
			rep.Job.SiteID,
			rep.Job.CategorySlug,
			rep.Universal,
			rep.Pages,
			rep.Batches,
			rep.Items,
			rep.Dropped + rep.Failed,
			rep.Duration.Round(100 * time.Millisecond).String(),
			status,
		})
		pages += rep.Pages
		batches += rep.Batches
		items += rep.Items
		dropped += rep.Dropped + rep.Failed
	}
	t.AppendFooter(table.Row{"Total", "", "", pages, batches, items, dropped, "", ""})
	t.Render()
}
