package engine

import (
	"context"
	"slices"
)

// Edge 描述一条父子关系，Parent 为空表示 Child 是根或孤立顶点。
type Edge struct {
	Child  string
	Parent string
}

// TreeSource 提供构建索引所需的父子边。
type TreeSource interface {
	Edges(ctx context.Context) ([]Edge, error)
}

// StaticSource 是内存中的边列表。
type StaticSource []Edge

// Edges 实现 TreeSource。
func (s StaticSource) Edges(ctx context.Context) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s), nil
}

// SourceFunc 把普通函数适配为 TreeSource。
type SourceFunc func(ctx context.Context) ([]Edge, error)

// Edges 实现 TreeSource。
func (f SourceFunc) Edges(ctx context.Context) ([]Edge, error) {
	return f(ctx)
}
