package chrome

import (
	"context"

	"github.com/LouYuanbo1/komprice/internal/infra/crawler/types"
)

// SessionFactory 为每次抓取打开一个独占的浏览会话
type SessionFactory interface {
	Open(ctx context.Context) (types.Session, error)
	Close() error
}
