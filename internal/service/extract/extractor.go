package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/LouYuanbo1/komprice/internal/domain/entity"
	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/param"
)

// Outcome is the result of extracting one batch of item nodes.
type Outcome struct {
	Items   []entity.ExtractedItem
	Dropped int // incomplete items
	Failed  int // items whose node access failed or panicked
}

type itemResult struct {
	item entity.ExtractedItem
	err  error
}

type Extractor struct {
	log logger.Logger
	now func() time.Time
}

// New returns an extractor logging through log, which should carry the site
// and category of the run.
func New(log logger.Logger) *Extractor {
	return &Extractor{log: log, now: time.Now}
}

// Extract returns the complete items found under nodes. It never fails:
// per-item problems are logged and the item is skipped.
func (e *Extractor) Extract(nodes []types.Node, sel param.Fields, origin *url.URL) []entity.ExtractedItem {
	return e.ExtractAll(nodes, sel, origin).Items
}

func (e *Extractor) ExtractAll(nodes []types.Node, sel param.Fields, origin *url.URL) Outcome {
	out := Outcome{Items: make([]entity.ExtractedItem, 0, len(nodes))}
	for i, node := range nodes {
		res := e.extractOne(node, sel, origin)
		switch {
		case res.err != nil:
			out.Failed++
			e.log.Warn("item extraction failed", logger.Int("index", i), logger.Error(res.err))
		case !res.item.Complete():
			out.Dropped++
			e.log.Debug("item dropped, missing fields", logger.Int("index", i),
				logger.Bool("title", res.item.Title != ""),
				logger.Bool("link", res.item.AffiliateURL != ""),
				logger.Bool("img", res.item.ImageURL != ""))
		default:
			out.Items = append(out.Items, res.item)
		}
	}
	return out
}

func (e *Extractor) extractOne(node types.Node, sel param.Fields, origin *url.URL) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = itemResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	title, err := textOf(node, sel.Title)
	if err != nil {
		return itemResult{err: fmt.Errorf("title: %w", err)}
	}
	priceText, err := textOf(node, sel.Price)
	if err != nil {
		return itemResult{err: fmt.Errorf("price: %w", err)}
	}
	href, err := attrOf(node, sel.Link, "href")
	if err != nil {
		return itemResult{err: fmt.Errorf("link: %w", err)}
	}
	img, err := find(node, sel.Img)
	if err != nil {
		return itemResult{err: fmt.Errorf("img: %w", err)}
	}
	src := ""
	if img != nil {
		if src, err = imageSource(img); err != nil {
			return itemResult{err: fmt.Errorf("img: %w", err)}
		}
	}

	return itemResult{item: entity.NewExtractedItem(
		title,
		ParsePrice(priceText),
		absolute(origin, href),
		absolute(origin, src),
		e.now(),
	)}
}

// find returns nil without error when selector matches nothing.
func find(node types.Node, selector string) (types.Node, error) {
	found, err := node.Find(selector)
	if errors.Is(err, types.ErrElementNotFound) {
		return nil, nil
	}
	return found, err
}

func textOf(node types.Node, selector string) (string, error) {
	found, err := find(node, selector)
	if err != nil || found == nil {
		return "", err
	}
	text, err := found.Text()
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func attrOf(node types.Node, selector, name string) (string, error) {
	found, err := find(node, selector)
	if err != nil || found == nil {
		return "", err
	}
	v, _, err := found.Attr(name)
	return strings.TrimSpace(v), err
}

// absolute resolves ref against the page origin; empty stays empty.
func absolute(origin *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() || origin == nil {
		return u.String()
	}
	return origin.ResolveReference(u).String()
}
