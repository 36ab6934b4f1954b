// Package dom adapts goquery selections to crawler nodes, for sessions that
// work on an HTML snapshot instead of a live page.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
)

type node struct {
	sel *goquery.Selection
}

func Wrap(sel *goquery.Selection) types.Node {
	return &node{sel: sel}
}

func (n *node) Find(selector string) (types.Node, error) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return &node{sel: found}, nil
}

func (n *node) Text() (string, error) {
	return strings.TrimSpace(n.sel.Text()), nil
}

func (n *node) Attr(name string) (string, bool, error) {
	v, ok := n.sel.Attr(name)
	return v, ok, nil
}

// Snapshot is a parsed HTML page.
type Snapshot struct {
	doc *goquery.Document
}

func Parse(r io.Reader) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

func ParseString(html string) (*Snapshot, error) {
	return Parse(strings.NewReader(html))
}

func (s *Snapshot) Count(selector string) int {
	return s.doc.Find(selector).Length()
}

func (s *Snapshot) Nodes(selector string) []types.Node {
	matched := s.doc.Find(selector)
	nodes := make([]types.Node, 0, matched.Length())
	matched.Each(func(_ int, sel *goquery.Selection) {
		nodes = append(nodes, Wrap(sel))
	})
	return nodes
}

// Attr returns an attribute of the first element matching selector.
func (s *Snapshot) Attr(selector, name string) (string, bool) {
	return s.doc.Find(selector).First().Attr(name)
}
