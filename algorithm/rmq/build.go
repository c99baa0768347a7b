package rmq

import (
	"github.com/sourcegraph/conc"
	"github.com/wyfcoding/rmq/algorithm/math"
)

// defaultParallelThreshold 单层槽位数低于该值时不拆分并发任务。
const defaultParallelThreshold = 1 << 16

// build 在 st 上构建 data 的稀疏表，返回物化的最高层（n <= 2 时为 0）。
// 相等元素一律偏向下标更小的一侧：第 1 层用 !less(A[i+1], A[i])，
// 更高层合并时用 !less(A[M2], A[M1])，左子块胜出。
// 时间与空间复杂度均为 Θ(n log n)。
func build[T any](data []T, less func(a, b T) bool, st storage, o options) int {
	n := len(data)
	levels := MaxLevel(n)
	if levels == 0 {
		return 0
	}

	f := filler{workers: o.workers, threshold: o.threshold}

	cur := st.grow(1, n-1)
	f.fill(cur, func(i int) int {
		if less(data[i+1], data[i]) {
			return i + 1
		}
		return i
	})

	for j := 2; j <= levels; j++ {
		half := math.Pow2(j - 1)
		cur = st.grow(j, n-math.Pow2(j)+1)
		prev := st.row(j - 1)
		f.fill(cur, func(i int) int {
			m1, m2 := prev[i], prev[i+half]
			if less(data[m2], data[m1]) {
				return m2
			}
			return m1
		})
	}

	return levels
}

// filler 负责填充单层。层内各槽位互相独立，超过阈值时按连续分块并发写入。
type filler struct {
	workers   int
	threshold int
}

func (f filler) fill(dst []int, winner func(i int) int) {
	if f.workers <= 1 || len(dst) < f.threshold {
		for i := range dst {
			dst[i] = winner(i)
		}
		return
	}

	chunk := (len(dst) + f.workers - 1) / f.workers
	var wg conc.WaitGroup
	for lo := 0; lo < len(dst); lo += chunk {
		hi := min(lo+chunk, len(dst))
		wg.Go(func() {
			for i := lo; i < hi; i++ {
				dst[i] = winner(i)
			}
		})
	}
	wg.Wait()
}
