package es

import (
	"context"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"

	"github.com/LouYuanbo1/komprice/internal/domain/model"
)

// TypedEsClient 所有写入es的文档类型共用的客户端
type TypedEsClient[D model.Document] interface {
	CreateIndexWithMapping(ctx context.Context) error
	// DeleteIndex 删除索引,索引不存在时直接返回
	DeleteIndex(ctx context.Context) error
	BulkIndexDocsWithID(ctx context.Context, docs []D) error
	GetDoc(ctx context.Context, id string) (D, error)
	CountDocs(ctx context.Context) (int64, error)
	SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error)
}
