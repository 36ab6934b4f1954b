package scraper

import (
	"fmt"

	"github.com/LouYuanbo1/komprice/internal/config"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/chrome"
)

// SessionSource returns the session factory used for a site.
type SessionSource interface {
	For(siteID string) (chrome.SessionFactory, error)
}

// Backends routes each site to the factory of its backend.
type Backends struct {
	Registry  Registry
	Default   config.Backend
	Factories map[config.Backend]chrome.SessionFactory
}

func (b Backends) For(siteID string) (chrome.SessionFactory, error) {
	site, err := b.Registry.Lookup(siteID)
	if err != nil {
		return nil, err
	}
	backend := site.Backend
	if backend == "" {
		backend = b.Default
	}
	f, ok := b.Factories[backend]
	if !ok {
		return nil, fmt.Errorf("no session backend %q for site %s", backend, site.ID)
	}
	return f, nil
}

// Close closes every factory.
func (b Backends) Close() error {
	var first error
	for _, f := range b.Factories {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// singleSource serves every site from one factory.
type singleSource struct {
	factory chrome.SessionFactory
}

func SingleSource(f chrome.SessionFactory) SessionSource {
	return singleSource{factory: f}
}

func (s singleSource) For(string) (chrome.SessionFactory, error) {
	return s.factory, nil
}
