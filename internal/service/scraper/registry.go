package scraper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LouYuanbo1/komprice/internal/config"
)

// Site describes one supported marketplace.
type Site struct {
	ID      string
	Name    string
	BaseURL string
	// Backend overrides the configured default session backend.
	Backend config.Backend
}

// Registry maps upper-case site ids to their descriptors.
type Registry map[string]Site

// DefaultRegistry lists the marketplaces komprice knows how to scrape.
func DefaultRegistry() Registry {
	sites := []Site{
		{ID: "JUMIA", Name: "Jumia Ghana", BaseURL: "https://www.jumia.com.gh"},
		{ID: "SHOPWICE", Name: "Shopwice", BaseURL: "https://shopwice.com"},
		{ID: "ISTARI", Name: "iStari", BaseURL: "https://istari.com.gh"},
		{ID: "TELEFONIKA", Name: "Telefonika", BaseURL: "https://telefonika.com"},
		{ID: "GET4LESSGHANA", Name: "Get4Less Ghana", BaseURL: "https://get4lessghana.com"},
		{ID: "SHAQEXPRESS", Name: "Shaq Express", BaseURL: "https://shaqexpress.com"},
		{ID: "MYGHMARKET", Name: "MyGH Market", BaseURL: "https://myghmarket.com"},
	}
	r := make(Registry, len(sites))
	for _, s := range sites {
		r[s.ID] = s
	}
	return r
}

func (r Registry) Lookup(siteID string) (Site, error) {
	s, ok := r[strings.ToUpper(strings.TrimSpace(siteID))]
	if !ok {
		return Site{}, fmt.Errorf("%w: %s", config.ErrUnknownSite, siteID)
	}
	return s, nil
}

func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
