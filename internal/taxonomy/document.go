package taxonomy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptyDocument = errors.New("taxonomy document has no universal categories")

// Bucket groups vendor aliases under one universal category, e.g. "Mobile Phones".
type Bucket struct {
	Name    string
	Aliases []string
}

type Universal struct {
	Label   string
	Buckets []Bucket
}

// Slug is the universal category slug for this entry.
func (u Universal) Slug() string {
	return Slugify(u.Label)
}

// Document is the parsed universal taxonomy, in declaration order.
type Document struct {
	Universals []Universal
}

func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return ParseDocument(data)
}

// ParseDocument reads `universal_label -> {bucket -> [alias, ...]}` YAML.
// Order is preserved so that the first declaration of a duplicated alias wins.
func ParseDocument(data []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(root.Content) == 0 {
		return Document{}, ErrEmptyDocument
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return Document{}, fmt.Errorf("parse taxonomy: line %d: expected a mapping of universal categories", top.Line)
	}

	var doc Document
	for i := 0; i+1 < len(top.Content); i += 2 {
		label, body := top.Content[i], top.Content[i+1]
		u := Universal{Label: label.Value}
		if Slugify(u.Label) == "" {
			return Document{}, fmt.Errorf("parse taxonomy: line %d: universal label %q has an empty slug", label.Line, label.Value)
		}
		switch body.Kind {
		case yaml.MappingNode:
			for j := 0; j+1 < len(body.Content); j += 2 {
				var aliases []string
				if err := body.Content[j+1].Decode(&aliases); err != nil {
					return Document{}, fmt.Errorf("parse taxonomy: %s/%s: %w", u.Label, body.Content[j].Value, err)
				}
				u.Buckets = append(u.Buckets, Bucket{Name: body.Content[j].Value, Aliases: aliases})
			}
		case yaml.ScalarNode:
			// "Groceries:" with nothing under it is a leaf universal category.
			if body.Tag != "!!null" {
				return Document{}, fmt.Errorf("parse taxonomy: line %d: %s must map buckets to alias lists", body.Line, u.Label)
			}
		default:
			return Document{}, fmt.Errorf("parse taxonomy: line %d: %s must map buckets to alias lists", body.Line, u.Label)
		}
		doc.Universals = append(doc.Universals, u)
	}
	if len(doc.Universals) == 0 {
		return Document{}, ErrEmptyDocument
	}
	return doc, nil
}

// UniversalSlugs lists the universal category slugs in declaration order.
func (d Document) UniversalSlugs() []string {
	slugs := make([]string, 0, len(d.Universals))
	for _, u := range d.Universals {
		slugs = append(slugs, u.Slug())
	}
	return slugs
}

// Tree flattens every bucket into `universal_slug -> [child_slug, ...]`.
func (d Document) Tree() map[string][]string {
	tree := make(map[string][]string, len(d.Universals))
	for _, u := range d.Universals {
		children := []string{}
		for _, b := range u.Buckets {
			for _, alias := range b.Aliases {
				children = append(children, Slugify(alias))
			}
		}
		tree[u.Slug()] = children
	}
	return tree
}
