package rmq

import (
	"cmp"

	"github.com/wyfcoding/rmq/algorithm/math"
	"github.com/wyfcoding/rmq/xerrors"
)

// NewMatrix 为长度为 n 的序列分配 [LowerLog2(n)+1][n] 的下标矩阵，供 BuildMatrix 使用。
func NewMatrix(n int) [][]int {
	if n == 0 {
		return nil
	}
	m := make([][]int, math.LowerLog2(n)+1)
	for j := range m {
		m[j] = make([]int, n)
	}
	return m
}

// BuildMatrix 在调用方提供的矩阵 m 上构建 a 的稀疏表，M[j][i] 为 a[i:i+2^j] 中最小值的下标。
// 第 0 层不写入；len(a) <= 2 时不做任何事。
func BuildMatrix[T cmp.Ordered](a []T, m [][]int) {
	build(a, cmp.Less[T], &gridStorage{rows: m, external: true}, buildOptions(nil))
}

// QueryMatrix 在 BuildMatrix 构建的矩阵上查询 [i, j] 的最小值下标。
func QueryMatrix[T cmp.Ordered](a []T, m [][]int, i, j int) int {
	return query(a, cmp.Less[T], &gridStorage{rows: m, external: true}, MaxLevel(len(a)), i, j)
}

// AppendFlat 以增量方式把 a 的稀疏表逐层追加到空切片 dst 上并返回结果，
// 每层的输入位置由运行偏移量跟踪。len(a) < 3 时原样返回 dst。
func AppendFlat[T cmp.Ordered](dst []int, a []T) []int {
	if len(dst) != 0 {
		xerrors.Precondition(xerrors.ErrNonEmptyOutput, "AppendFlat: dst has %d entries", len(dst))
	}
	st := newFlatStorage(dst, len(a))
	build(a, cmp.Less[T], st, buildOptions(nil))
	return st.arena
}

// QueryFlat 在 AppendFlat 的结果上查询 [i, j] 的最小值下标。
func QueryFlat[T cmp.Ordered](a []T, flat []int, i, j int) int {
	if len(flat) < FlatSize(len(a)) {
		xerrors.Precondition(xerrors.ErrMatrixShape, "flat table has %d entries, need %d", len(flat), FlatSize(len(a)))
	}
	return query(a, cmp.Less[T], newFlatStorage(flat, len(a)), MaxLevel(len(a)), i, j)
}
