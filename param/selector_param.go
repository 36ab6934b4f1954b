package param

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type PaginationType string

// 分页方式,限制可能的值
const (
	PaginationQuery    PaginationType = "query"
	PaginationPath     PaginationType = "path"
	PaginationNext     PaginationType = "next"
	PaginationInfinite PaginationType = "infinite"
)

// PagePlaceholder is replaced with the page number in a path template.
const PagePlaceholder = "{n}"

// DefaultScrollDelay is used by infinite pagination when scroll_delay is unset.
const DefaultScrollDelay = 2 * time.Second

var ErrInvalidSelectorConfig = errors.New("invalid selector config")

// Fields are the CSS selectors resolved relative to one item node.
type Fields struct {
	Item  string `json:"item" yaml:"item"`
	Title string `json:"title" yaml:"title"`
	Price string `json:"price" yaml:"price"`
	Link  string `json:"link" yaml:"link"`
	Img   string `json:"img" yaml:"img"`
}

type Pagination struct {
	Type         PaginationType `json:"type" yaml:"type"`
	Param        string         `json:"param,omitempty" yaml:"param,omitempty"`
	Template     string         `json:"template,omitempty" yaml:"template,omitempty"`
	NextSelector string         `json:"next_selector,omitempty" yaml:"next_selector,omitempty"`
	MaxPages     int            `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
	// ScrollDelay is in seconds, as written in the selector files.
	ScrollDelay float64 `json:"scroll_delay,omitempty" yaml:"scroll_delay,omitempty"`
}

// ScrollWait returns the infinite-scroll settle delay.
func (p Pagination) ScrollWait() time.Duration {
	if p.ScrollDelay <= 0 {
		return DefaultScrollDelay
	}
	return time.Duration(p.ScrollDelay * float64(time.Second))
}

// SelectorConfig describes one listing page of one site category.
// It is treated as immutable for the duration of a run.
type SelectorConfig struct {
	URL        string     `json:"url" yaml:"url"`
	Fields     `yaml:",inline"`
	Pagination Pagination `json:"pagination" yaml:"pagination"`
}

// Validate reports the first problem with the config, wrapped in ErrInvalidSelectorConfig.
func (sc *SelectorConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSelectorConfig, fmt.Sprintf(format, args...))
	}
	if sc.URL == "" {
		return invalid("url is required")
	}
	u, err := url.Parse(sc.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("url %q is not absolute", sc.URL)
	}
	required := map[string]string{
		"item":  sc.Item,
		"title": sc.Title,
		"price": sc.Price,
		"link":  sc.Link,
		"img":   sc.Img,
	}
	for _, key := range []string{"item", "title", "price", "link", "img"} {
		if required[key] == "" {
			return invalid("%s selector is required", key)
		}
	}
	if sc.Pagination.MaxPages < 0 {
		return invalid("max_pages must not be negative")
	}
	switch sc.Pagination.Type {
	case PaginationQuery:
		if sc.Pagination.Param == "" {
			return invalid("query pagination needs param")
		}
	case PaginationPath:
		if !strings.Contains(sc.Pagination.Template, PagePlaceholder) {
			return invalid("path pagination needs a template containing %s", PagePlaceholder)
		}
	case PaginationNext:
		if sc.Pagination.NextSelector == "" {
			return invalid("next pagination needs next_selector")
		}
	case PaginationInfinite:
	default:
		return invalid("unknown pagination type %q", sc.Pagination.Type)
	}
	return nil
}

func (sc *SelectorConfig) IsValid() bool {
	return sc.Validate() == nil
}

// Origin returns scheme://host of the entry URL, used to absolutize relative links.
func (sc *SelectorConfig) Origin() (*url.URL, error) {
	u, err := url.Parse(sc.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelectorConfig, err)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
