package types

import (
	"context"
	"errors"
)

var (
	// ErrElementNotFound 元素在等待时间内没有出现
	ErrElementNotFound = errors.New("element not found")
	// ErrUnsupported 当前会话后端不支持该操作
	ErrUnsupported = errors.New("operation not supported by session")
)

// Node is one element of a rendered page.
type Node interface {
	// Find returns the first descendant matching selector, or ErrElementNotFound.
	Find(selector string) (Node, error)
	Text() (string, error)
	// Attr reports the attribute value and whether it is present.
	Attr(name string) (string, bool, error)
}

// Session is a browsing session owned by a single scrape run.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches, returning ErrElementNotFound on timeout.
	WaitFor(ctx context.Context, selector string) error
	Items(ctx context.Context, selector string) ([]Node, error)
	Count(ctx context.Context, selector string) (int, error)
	ScrollToBottom(ctx context.Context) error
	// ClickNext activates the control matched by selector; false means none was present.
	ClickNext(ctx context.Context, selector string) (bool, error)
	Close() error
}
