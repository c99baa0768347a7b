package math

import (
	"math/bits"

	"github.com/wyfcoding/rmq/xerrors"
)

// LowerLog2 返回满足 2^k <= n 的最大整数 k，即 floor(log2(n))。
// 基于 bits.Len 实现，时间复杂度 O(1)。n <= 0 时触发定义域 panic。
func LowerLog2(n int) int {
	if n <= 0 {
		xerrors.Precondition(xerrors.ErrDomain, "LowerLog2(%d): n must be positive", n)
	}
	return bits.Len(uint(n)) - 1
}

// Pow2 返回 2^k。
func Pow2(k int) int {
	if k < 0 {
		xerrors.Precondition(xerrors.ErrDomain, "Pow2(%d): k must be non-negative", k)
	}
	return 1 << uint(k)
}
