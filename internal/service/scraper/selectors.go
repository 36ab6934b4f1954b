package scraper

import (
	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/param"
)

// JobConfig loads the selector entry of job from the site's file in dir.
func JobConfig(dir string, job param.Job) (param.SelectorConfig, error) {
	sels, err := config.LoadSiteSelectors(config.SelectorPath(dir, job.SiteID))
	if err != nil {
		return param.SelectorConfig{}, err
	}
	return sels.For(job.CategorySlug)
}
