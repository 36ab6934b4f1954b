package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
	"github.com/LouYuanbo1/komprice/param"
)

func newScrapeCommand() *cobra.Command {
	var site, category string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape now, in this process",
		Long: `Scrape one site (all of its configured categories unless --category is
given), or every job of the category settings file when --site is omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			planner := a.planner()
			jobs, err := selectJobs(a.cfg, planner, site, category)
			if err != nil {
				return err
			}
			plans, err := planner.Plan(jobs)
			if err != nil {
				return err
			}
			svc, err := a.scraperService(ctx)
			if err != nil {
				return err
			}
			results, runErr := dispatch.NewRunner(svc, a.cfg.Scrape.Workers(), a.log).RunAll(ctx, plans)
			renderSummary(os.Stdout, results)
			if runErr != nil {
				return fmt.Errorf("%d of %d runs failed", failedRuns(results), len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site id, e.g. JUMIA")
	cmd.Flags().StringVar(&category, "category", "", "vendor category slug (requires --site)")
	return cmd
}

// selectJobs picks the jobs named by the flags, falling back to the category settings file.
func selectJobs(cfg *config.Config, planner *dispatch.Planner, site, category string) ([]param.Job, error) {
	if site == "" {
		if category != "" {
			return nil, errors.New("--category requires --site")
		}
		return config.LoadJobs(cfg.Paths.Jobs)
	}
	return planner.SiteJobs(site, category)
}

func failedRuns(results []dispatch.Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
