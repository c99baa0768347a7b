// Package rmq 实现基于稀疏表 (Sparse Table) 的区间最小值查询。
// 预处理 Θ(n log n)，单次查询 Θ(1)；构建后不可修改，如需更新必须整体重建。
package rmq

import (
	"cmp"

	"github.com/wyfcoding/rmq/algorithm/math"
	"github.com/wyfcoding/rmq/xerrors"
)

// SparseTable 是静态序列上的区间最小值索引。
// 表中只保存下标，查询时回读原序列，因此构建后调用方不得再修改 data。
// New/NewFunc 返回后结构不再变化，可被任意多个 goroutine 并发查询。
type SparseTable[T any] struct {
	data   []T
	less   func(a, b T) bool
	store  storage
	levels int
	layout Layout
}

// New 为可排序类型构建稀疏表。
func New[T cmp.Ordered](data []T, opts ...Option) *SparseTable[T] {
	return NewFunc(data, cmp.Less[T], opts...)
}

// NewFunc 使用自定义比较函数构建稀疏表，less 必须是严格弱序。
func NewFunc[T any](data []T, less func(a, b T) bool, opts ...Option) *SparseTable[T] {
	o := buildOptions(opts)

	var st storage
	switch o.layout {
	case LayoutFlat:
		st = newFlatStorage(make([]int, 0, FlatSize(len(data))), len(data))
	default:
		st = newGridStorage(MaxLevel(len(data)))
	}

	return &SparseTable[T]{
		data:   data,
		less:   less,
		store:  st,
		levels: build(data, less, st, o),
		layout: o.layout,
	}
}

// Query 返回 [i, j] 闭区间内最小元素的下标；存在多个最小值时返回最小的下标。
// 要求 0 <= i <= j < Len()，否则 panic。
func (t *SparseTable[T]) Query(i, j int) int {
	return query(t.data, t.less, t.store, t.levels, i, j)
}

// Min 返回 [i, j] 闭区间内的最小元素。
func (t *SparseTable[T]) Min(i, j int) T {
	return t.data[t.Query(i, j)]
}

// Len 返回原始序列长度。
func (t *SparseTable[T]) Len() int {
	return len(t.data)
}

// Levels 返回物化的最高层，n <= 2 时为 0。
func (t *SparseTable[T]) Levels() int {
	return t.levels
}

// Entries 返回表中保存的下标总数。
func (t *SparseTable[T]) Entries() int {
	return t.store.entries()
}

// Layout 返回存储布局。
func (t *SparseTable[T]) Layout() Layout {
	return t.layout
}

// query 是所有查询入口共用的 Θ(1) 逻辑：用两个长度为 2^k 的重叠块覆盖 [i, j]。
// 最小值运算满足幂等性，重叠部分不影响结果；平局时取左块的胜者。
func query[T any](data []T, less func(a, b T) bool, st storage, levels, i, j int) int {
	n := len(data)
	if i < 0 || i > j || j >= n {
		xerrors.Precondition(xerrors.ErrInvalidRange, "[%d, %d] with n=%d", i, j, n)
	}
	if i == j {
		return i
	}

	x, y := i, j
	if levels > 0 {
		k := math.LowerLog2(j - i + 1)
		x = st.at(k, i)
		y = st.at(k, j-math.Pow2(k)+1)
	}
	if less(data[y], data[x]) {
		return y
	}
	return x
}
