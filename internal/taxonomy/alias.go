package taxonomy

import (
	"strings"

	"github.com/LouYuanbo1/komprice/internal/logger"
)

// AliasMap resolves vendor category labels to universal category slugs.
// It is built once at startup and only read afterwards, so it is safe to
// share between concurrent runs.
type AliasMap struct {
	aliases map[string]string
}

// BuildAliasMap indexes every alias under its lowercased form and its slug.
// An alias declared under two universal categories keeps the first one.
func BuildAliasMap(doc Document, log logger.Logger) *AliasMap {
	if log == nil {
		log = logger.NewNop()
	}
	m := &AliasMap{aliases: make(map[string]string)}
	add := func(alias, universal string) {
		for _, key := range []string{strings.ToLower(strings.TrimSpace(alias)), Slugify(alias)} {
			if key == "" {
				continue
			}
			if existing, ok := m.aliases[key]; ok {
				if existing != universal {
					log.Warn("Vendor alias declared twice, keeping first",
						logger.String("alias", alias),
						logger.String("kept", existing),
						logger.String("ignored", universal),
					)
				}
				continue
			}
			m.aliases[key] = universal
		}
	}
	for _, u := range doc.Universals {
		slug := u.Slug()
		add(u.Label, slug)
		for _, b := range u.Buckets {
			for _, alias := range b.Aliases {
				add(alias, slug)
			}
		}
	}
	return m
}

// Resolve returns the universal slug for a vendor label. Unknown labels come
// back unchanged; the miss is lossy but never an error.
func (m *AliasMap) Resolve(label string) string {
	if m == nil {
		return label
	}
	key := strings.ToLower(strings.TrimSpace(label))
	if slug, ok := m.aliases[key]; ok {
		return slug
	}
	if slug, ok := m.aliases[Slugify(label)]; ok {
		return slug
	}
	return label
}

func (m *AliasMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.aliases)
}
