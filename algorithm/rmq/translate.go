package rmq

import (
	"github.com/wyfcoding/rmq/algorithm/math"
	"github.com/wyfcoding/rmq/xerrors"
)

// Translate 返回扁平布局中 (level, i) 所在的偏移量，n 为原始序列长度。
// 第 l 层共有 n-2^l+1 个槽位，因此第 level 层之前的槽位总数为
// Σ_{l=1}^{level-1} (n-2^l+1) = (level-1)·n - (2^level - level - 1)。
func Translate(i, level, n int) int {
	if level < 1 {
		xerrors.Precondition(xerrors.ErrDomain, "Translate: level %d is implicit", level)
	}
	if level == 1 {
		return i
	}
	return (level-1)*n - (math.Pow2(level) - level - 1) + i
}

// FlatSize 返回长度为 n 的序列在扁平布局下需要的槽位总数。
func FlatSize(n int) int {
	if n <= 2 {
		return 0
	}
	return Translate(0, math.LowerLog2(n)+1, n)
}

// MaxLevel 返回长度为 n 的序列实际物化的最高层，n <= 2 时为 0（不建表）。
func MaxLevel(n int) int {
	if n <= 2 {
		return 0
	}
	return math.LowerLog2(n)
}
