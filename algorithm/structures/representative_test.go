package structures

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepresentativeMap(t *testing.T) {
	a := []uint{0, 0, 1, 0, 2, 1, 2, 1}
	expected := map[uint]int{0: 0, 2: 4, 1: 2}

	got := RepresentativeMap(slices.All(a))

	assert.Equal(t, expected, got.Map())
	assert.Equal(t, []uint{0, 1, 2}, got.Keys())
	assert.Equal(t, 3, got.Len())
	pos, ok := got.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 4, pos)
	_, ok = got.Get(9)
	assert.False(t, ok)
}

func TestRepresentatives(t *testing.T) {
	a := []uint{0, 0, 1, 0, 2, 1, 2, 1}

	assert.Equal(t, []int{0, 2, 4}, Representatives(a, len(a)))
	assert.Equal(t, []int{0, 2}, Representatives(a, 4))
	assert.Empty(t, Representatives(a, 0))

	assert.Equal(t, []int{0, 2, 4}, RepresentativesRange(a, 0, len(a)))
	// s[3:8] = {0, 2, 1, 2, 1}
	assert.Equal(t, []int{0, 1, 2}, RepresentativesRange(a, 3, len(a)))
	assert.Empty(t, RepresentativesRange(a, 5, 5))
}

func TestFirstOccurrenceInsertIfAbsent(t *testing.T) {
	f := NewFirstOccurrence[string, int](4)

	assert.True(t, f.Insert("a", 1))
	assert.False(t, f.Insert("a", 2))
	assert.True(t, f.Insert("b", 3))

	v, _ := f.Get("a")
	assert.Equal(t, 1, v)

	m := f.Map()
	m["a"] = 100
	v, _ = f.Get("a")
	assert.Equal(t, 1, v, "Map must return a copy")
}

func TestRepresentativesEarliestWins(t *testing.T) {
	words := []string{"x", "y", "x", "z", "y", "x"}
	got := RepresentativeMap(slices.All(words)).Map()

	for w, pos := range got {
		assert.Equal(t, slices.Index(words, w), pos)
	}
}
