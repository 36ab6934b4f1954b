package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LouYuanbo1/komprice/param"
)

var (
	ErrCategoryNotConfigured = errors.New("category not configured for site")
	ErrUnknownSite           = errors.New("unknown site")
)

// SiteSelectors maps a vendor category slug to its listing page description.
type SiteSelectors map[string]param.SelectorConfig

// ParseSiteSelectors decodes a selector document and validates every entry.
func ParseSiteSelectors(data []byte) (SiteSelectors, error) {
	var sel SiteSelectors
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("parse selectors: %w", err)
	}
	for slug, sc := range sel {
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("category %q: %w", slug, err)
		}
	}
	return sel, nil
}

func LoadSiteSelectors(path string) (SiteSelectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors %s: %w", path, err)
	}
	return ParseSiteSelectors(data)
}

// SelectorPath returns the selector file for a site inside dir.
func SelectorPath(dir, siteID string) string {
	return filepath.Join(dir, strings.ToLower(siteID)+".yaml")
}

func (s SiteSelectors) For(categorySlug string) (param.SelectorConfig, error) {
	sc, ok := s[categorySlug]
	if !ok {
		return param.SelectorConfig{}, fmt.Errorf("%w: %s", ErrCategoryNotConfigured, categorySlug)
	}
	return sc, nil
}

// Categories returns the configured category slugs in sorted order.
func (s SiteSelectors) Categories() []string {
	slugs := make([]string, 0, len(s))
	for slug := range s {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// ParseJobs decodes a category settings document, a list of {site, category}.
func ParseJobs(data []byte) ([]param.Job, error) {
	var jobs []param.Job
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}
	for i, j := range jobs {
		if j.SiteID == "" || j.CategorySlug == "" {
			return nil, fmt.Errorf("job %d: site and category are required", i)
		}
	}
	return jobs, nil
}

func LoadJobs(path string) ([]param.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs %s: %w", path, err)
	}
	return ParseJobs(data)
}
