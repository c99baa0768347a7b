// Package graph 提供树上的图论算法实现。
package graph

import (
	"slices"

	"github.com/wyfcoding/rmq/algorithm/rmq"
	"github.com/wyfcoding/rmq/algorithm/structures"
	"github.com/wyfcoding/rmq/xerrors"
)

// EulerLCA 基于欧拉序列 + 稀疏表 (Berkman-Vishkin) 的最近公共祖先索引。
// 预处理复杂度 O(N log N)，单次查询复杂度 O(1)。
// 欧拉序列、深度序列、代表元映射与稀疏表作为一个整体在构造时生成，之后不再修改，
// 因此同一个 EulerLCA 可被任意多个 goroutine 并发查询。
type EulerLCA[V comparable] struct {
	tour   []V
	depths []int
	rep    *structures.FirstOccurrence[V, int]
	table  *rmq.SparseTable[int]
}

// NewEulerLCA 运行 traverse 收集欧拉序列与深度序列，然后构建索引。
func NewEulerLCA[V comparable](traverse Traversal[V], opts ...rmq.Option) (*EulerLCA[V], error) {
	rec := &TourRecorder[V]{}
	traverse(rec)
	return FromTour(rec.Tour, rec.Depths, opts...)
}

// FromTour 由外部给出的欧拉序列与深度序列构建索引，两者长度必须一致。
// 索引持有 tour 与 depths 的所有权，调用方之后不得修改它们。
func FromTour[V comparable](tour []V, depths []int, opts ...rmq.Option) (*EulerLCA[V], error) {
	if len(tour) != len(depths) {
		return nil, xerrors.ErrLengthMismatch.Derive("tour has %d entries, depths has %d", len(tour), len(depths))
	}

	return &EulerLCA[V]{
		tour:   tour,
		depths: depths,
		rep:    structures.RepresentativeMap(slices.All(tour)),
		table:  rmq.New(depths, opts...),
	}, nil
}

// LCA 查询 u 与 v 的最近公共祖先。LCA(u, v) == LCA(v, u)，LCA(u, u) == u。
// u 或 v 不在树中时 panic。
func (l *EulerLCA[V]) LCA(u, v V) V {
	i := l.mustRep(u)
	j := l.mustRep(v)
	if j < i {
		i, j = j, i
	}
	return l.tour[l.table.Query(i, j)]
}

// Lookup 与 LCA 相同，但顶点不存在时返回 false 而不是 panic。
func (l *EulerLCA[V]) Lookup(u, v V) (V, bool) {
	i, ok1 := l.rep.Get(u)
	j, ok2 := l.rep.Get(v)
	if !ok1 || !ok2 {
		var zero V
		return zero, false
	}
	if j < i {
		i, j = j, i
	}
	return l.tour[l.table.Query(i, j)], true
}

// Depth 返回顶点深度，根为 0。
func (l *EulerLCA[V]) Depth(v V) (int, bool) {
	p, ok := l.rep.Get(v)
	if !ok {
		return 0, false
	}
	return l.depths[p], true
}

// Distance 返回 u 与 v 之间路径上的边数。
func (l *EulerLCA[V]) Distance(u, v V) int {
	w := l.LCA(u, v)
	return l.depths[l.mustRep(u)] + l.depths[l.mustRep(v)] - 2*l.depths[l.mustRep(w)]
}

// Contains 报告顶点是否在树中。
func (l *EulerLCA[V]) Contains(v V) bool {
	_, ok := l.rep.Get(v)
	return ok
}

// Representative 返回顶点在欧拉序列中首次出现的位置。
func (l *EulerLCA[V]) Representative(v V) (int, bool) {
	return l.rep.Get(v)
}

// Len 返回树的顶点数。
func (l *EulerLCA[V]) Len() int {
	return l.rep.Len()
}

// Entries 返回底层稀疏表保存的下标个数。
func (l *EulerLCA[V]) Entries() int {
	return l.table.Entries()
}

// Layout 返回底层稀疏表的存储布局。
func (l *EulerLCA[V]) Layout() rmq.Layout {
	return l.table.Layout()
}

// Vertices 按首次访问顺序返回所有顶点。
func (l *EulerLCA[V]) Vertices() []V {
	return l.rep.Keys()
}

// Tour 返回欧拉序列的副本。
func (l *EulerLCA[V]) Tour() []V {
	return slices.Clone(l.tour)
}

// Depths 返回深度序列的副本。
func (l *EulerLCA[V]) Depths() []int {
	return slices.Clone(l.depths)
}

func (l *EulerLCA[V]) mustRep(v V) int {
	p, ok := l.rep.Get(v)
	if !ok {
		xerrors.Precondition(xerrors.ErrUnknownVertex, "vertex %v", v)
	}
	return p
}
