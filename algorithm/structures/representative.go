package structures

import (
	"iter"
	"maps"
)

// FirstOccurrence 是"仅在不存在时插入"的映射，并记录键首次出现的顺序。
// 重复插入同一个键会被静默忽略，因此最早写入的值总是胜出。
// 非并发安全：构建完成后只读使用即可被多个 goroutine 共享。
type FirstOccurrence[K comparable, V any] struct {
	index map[K]V
	order []K
}

// NewFirstOccurrence 创建一个空的 FirstOccurrence，hint 为预估的键数量。
func NewFirstOccurrence[K comparable, V any](hint int) *FirstOccurrence[K, V] {
	return &FirstOccurrence[K, V]{
		index: make(map[K]V, hint),
		order: make([]K, 0, hint),
	}
}

// Insert 在 key 不存在时写入 value 并返回 true；已存在时不做任何修改并返回 false。
func (f *FirstOccurrence[K, V]) Insert(key K, value V) bool {
	if _, ok := f.index[key]; ok {
		return false
	}
	f.index[key] = value
	f.order = append(f.order, key)
	return true
}

// Get 返回 key 首次插入时的值。
func (f *FirstOccurrence[K, V]) Get(key K) (V, bool) {
	v, ok := f.index[key]
	return v, ok
}

// Len 返回不同键的数量。
func (f *FirstOccurrence[K, V]) Len() int {
	return len(f.order)
}

// Keys 按首次出现顺序返回所有键的副本。
func (f *FirstOccurrence[K, V]) Keys() []K {
	out := make([]K, len(f.order))
	copy(out, f.order)
	return out
}

// Map 返回底层映射的副本。
func (f *FirstOccurrence[K, V]) Map() map[K]V {
	return maps.Clone(f.index)
}

// RepresentativeMap 扫描 (位置, 值) 序列，为每个不同的值记录其最早出现的位置。
func RepresentativeMap[K comparable](seq iter.Seq2[int, K]) *FirstOccurrence[K, int] {
	f := NewFirstOccurrence[K, int](0)
	for pos, key := range seq {
		f.Insert(key, pos)
	}
	return f
}

// Representatives 返回 first 前 n 个元素中每个不同值首次出现的位置，按输入顺序排列。
func Representatives[T comparable](first []T, n int) []int {
	return RepresentativesRange(first, 0, n)
}

// RepresentativesRange 与 Representatives 相同，但作用于半开区间 s[first:last]，
// 返回的位置相对于 first。
func RepresentativesRange[T comparable](s []T, first, last int) []int {
	f := NewFirstOccurrence[T, int](max(last-first, 0))
	var out []int
	for i := first; i != last; i++ {
		if f.Insert(s[i], i) {
			out = append(out, i-first)
		}
	}
	return out
}
