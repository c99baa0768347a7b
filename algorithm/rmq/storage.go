package rmq

import (
	"slices"

	"github.com/wyfcoding/rmq/algorithm/math"
	"github.com/wyfcoding/rmq/xerrors"
)

// storage 抽象稀疏表各层的存放方式。第 0 层恒等于位置本身，从不落盘。
// 构建过程按层递增调用 grow，每层只在前一层写完之后才开始。
type storage interface {
	// grow 为 level 层分配 size 个槽位并返回可写切片。
	grow(level, size int) []int
	// row 返回 level 层已写入的全部槽位。
	row(level int) []int
	// at 随机访问 level 层第 i 个槽位。
	at(level, i int) int
	// entries 返回已存储的槽位总数。
	entries() int
}

// gridStorage 二维存储：rows[j][i] 即 M[j][i]。
type gridStorage struct {
	rows     [][]int
	external bool // rows 由调用方预先分配
}

func newGridStorage(levels int) *gridStorage {
	return &gridStorage{rows: make([][]int, levels+1)}
}

func (g *gridStorage) grow(level, size int) []int {
	if !g.external {
		g.rows[level] = make([]int, size)
		return g.rows[level]
	}
	if level >= len(g.rows) || len(g.rows[level]) < size {
		xerrors.Precondition(xerrors.ErrMatrixShape, "level %d needs %d slots", level, size)
	}
	return g.rows[level][:size]
}

func (g *gridStorage) row(level int) []int {
	return g.rows[level]
}

func (g *gridStorage) at(level, i int) int {
	return g.rows[level][i]
}

func (g *gridStorage) entries() int {
	total := 0
	for j := 1; j < len(g.rows); j++ {
		total += len(g.rows[j])
	}
	return total
}

// flatStorage 将第 1 层起的所有层首尾相接存放在一段连续内存中。
// 构建时通过 starts 记录每层的运行偏移量；查询时用 Translate 的闭式公式随机访问，
// 两者在任意 (level, i) 上给出相同的位置。
type flatStorage struct {
	arena  []int
	starts []int // starts[j] 为第 j 层在 arena 中的起始偏移
	n      int
}

func newFlatStorage(arena []int, n int) *flatStorage {
	return &flatStorage{arena: arena, starts: []int{0}, n: n}
}

func (f *flatStorage) grow(level, size int) []int {
	off := len(f.arena)
	f.starts = append(f.starts, off)
	f.arena = slices.Grow(f.arena, size)[:off+size]
	return f.arena[off : off+size]
}

func (f *flatStorage) row(level int) []int {
	off := f.starts[level]
	return f.arena[off : off+f.n-math.Pow2(level)+1]
}

func (f *flatStorage) at(level, i int) int {
	return f.arena[Translate(i, level, f.n)]
}

func (f *flatStorage) entries() int {
	return len(f.arena)
}
