// Package dispatch turns category settings into scrape runs, either locally
// with bounded parallelism or through the Redis job queue.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/scraper"
	"github.com/LouYuanbo1/komprice/param"
)

// Plan is a job whose site and selector entry have been resolved.
type Plan struct {
	Job    param.Job
	Site   scraper.Site
	Config param.SelectorConfig
}

// Planner checks jobs against the site registry and the selector files.
type Planner struct {
	Registry    scraper.Registry
	SelectorDir string
	Log         logger.Logger
}

func NewPlanner(registry scraper.Registry, selectorDir string, log logger.Logger) *Planner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Planner{Registry: registry, SelectorDir: selectorDir, Log: log}
}

// Plan resolves every job. Problems are collected so one pass reports all
// of them, and nothing is returned unless every job is valid.
func (p *Planner) Plan(jobs []param.Job) ([]Plan, error) {
	files := make(map[string]config.SiteSelectors)
	seen := make(map[param.Job]bool, len(jobs))
	plans := make([]Plan, 0, len(jobs))
	var errs []error
	for _, job := range jobs {
		job.SiteID = strings.ToUpper(strings.TrimSpace(job.SiteID))
		if seen[job] {
			p.Log.Warn("duplicate job skipped", logger.String("job", job.String()))
			continue
		}
		seen[job] = true

		plan, err := p.resolve(job, files)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return plans, nil
}

// PlanOne resolves a single job, reading the selector file afresh.
func (p *Planner) PlanOne(job param.Job) (Plan, error) {
	job.SiteID = strings.ToUpper(strings.TrimSpace(job.SiteID))
	return p.resolve(job, make(map[string]config.SiteSelectors))
}

// SiteJobs lists the jobs for one site: the given category, or every
// category of its selector file when category is empty.
func (p *Planner) SiteJobs(siteID, category string) ([]param.Job, error) {
	site, err := p.Registry.Lookup(siteID)
	if err != nil {
		return nil, err
	}
	if category != "" {
		return []param.Job{{SiteID: site.ID, CategorySlug: category}}, nil
	}
	sels, err := config.LoadSiteSelectors(config.SelectorPath(p.SelectorDir, site.ID))
	if err != nil {
		return nil, err
	}
	slugs := sels.Categories()
	jobs := make([]param.Job, 0, len(slugs))
	for _, slug := range slugs {
		jobs = append(jobs, param.Job{SiteID: site.ID, CategorySlug: slug})
	}
	return jobs, nil
}

func (p *Planner) resolve(job param.Job, files map[string]config.SiteSelectors) (Plan, error) {
	site, err := p.Registry.Lookup(job.SiteID)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", job, err)
	}
	sels, ok := files[site.ID]
	if !ok {
		sels, err = config.LoadSiteSelectors(config.SelectorPath(p.SelectorDir, site.ID))
		if err != nil {
			return Plan{}, fmt.Errorf("%s: %w", job, err)
		}
		files[site.ID] = sels
	}
	cfg, err := sels.For(job.CategorySlug)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", job, err)
	}
	return Plan{Job: job, Site: site, Config: cfg}, nil
}

// Jobs returns the jobs of plans in order.
func Jobs(plans []Plan) []param.Job {
	jobs := make([]param.Job, len(plans))
	for i, p := range plans {
		jobs[i] = p.Job
	}
	return jobs
}
