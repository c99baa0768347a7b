package engine

import (
	"time"

	"github.com/wyfcoding/rmq/algorithm/graph"
	"github.com/wyfcoding/rmq/algorithm/rmq"
	"github.com/wyfcoding/rmq/xerrors"
)

// Index 是一棵已构建完成的树及其 LCA 索引，构建后只读，可并发查询。
type Index struct {
	Name    string
	BuiltAt time.Time
	lca     *graph.EulerLCA[string]
	tourLen int
}

// LCA 返回 u 与 v 的最近公共祖先，未知顶点返回 xerrors.ErrUnknownVertex。
func (x *Index) LCA(u, v string) (string, error) {
	if err := x.check(u, v); err != nil {
		return "", err
	}
	return x.lca.LCA(u, v), nil
}

// Distance 返回 u 与 v 之间路径上的边数。
func (x *Index) Distance(u, v string) (int, error) {
	if err := x.check(u, v); err != nil {
		return 0, err
	}
	return x.lca.Distance(u, v), nil
}

// Depth 返回顶点深度，根为 0。
func (x *Index) Depth(v string) (int, error) {
	d, ok := x.lca.Depth(v)
	if !ok {
		return 0, x.unknownVertex(v)
	}
	return d, nil
}

// Contains 报告顶点是否在树中。
func (x *Index) Contains(v string) bool { return x.lca.Contains(v) }

// Len 返回顶点数。
func (x *Index) Len() int { return x.lca.Len() }

// TourLength 返回欧拉序列长度 (2N-1)。
func (x *Index) TourLength() int { return x.tourLen }

// Entries 返回稀疏表保存的下标个数。
func (x *Index) Entries() int { return x.lca.Entries() }

// Layout 返回稀疏表布局。
func (x *Index) Layout() rmq.Layout { return x.lca.Layout() }

// Vertices 按首次访问顺序返回所有顶点。
func (x *Index) Vertices() []string { return x.lca.Vertices() }

func (x *Index) check(vs ...string) error {
	for _, v := range vs {
		if !x.lca.Contains(v) {
			return x.unknownVertex(v)
		}
	}
	return nil
}

func (x *Index) unknownVertex(v string) *xerrors.Error {
	return xerrors.ErrUnknownVertex.Derive("index %s: vertex %q", x.Name, v).
		WithContext("index", x.Name).
		WithContext("vertex", v)
}
