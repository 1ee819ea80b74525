package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type span struct {
	lo    float64
	width float64
}

func spanLo(s span) float64    { return s.lo }
func spanWidth(s span) float64 { return s.width }

func TestFindLowIndexInSortedArray(t *testing.T) {
	key := func(v float64) float64 { return v }

	tests := []struct {
		name     string
		seq      []float64
		target   float64
		expected int
	}{
		{name: "empty sequence returns sentinel", seq: nil, target: 5, expected: BeforeAll},
		{name: "first exact match wins on ties", seq: []float64{5, 10, 10, 15}, target: 10, expected: 1},
		{name: "before all elements", seq: []float64{5, 10, 15}, target: 1, expected: 0},
		{name: "between elements", seq: []float64{5, 10, 15}, target: 7, expected: 1},
		{name: "past the end", seq: []float64{5, 10, 15}, target: 20, expected: 3},
		{name: "exact first element", seq: []float64{5, 10, 15}, target: 5, expected: 0},
		{name: "exact last element", seq: []float64{5, 10, 15}, target: 15, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindLowIndexInSortedArray(tt.seq, key, tt.target))
		})
	}
}

func TestFindLowIndexInSortedArraySentinelNeverIndexes(t *testing.T) {
	got := FindLowIndexInSortedArray(nil, func(v float64) float64 { return v }, 5)
	assert.Negative(t, got, "sentinel must never be usable as an index")
	assert.NotEqual(t, 0, got, "sentinel must be distinct from index 0")
}

func TestFindLowIndexInSortedIntervals(t *testing.T) {
	seq := []span{{0, 5}, {5, 4}, {12, 8}}

	tests := []struct {
		name     string
		target   float64
		expected int
	}{
		{name: "inside first", target: 2, expected: 0},
		{name: "boundary belongs to right interval", target: 5, expected: 1},
		{name: "inside last", target: 12, expected: 2},
		{name: "before all", target: -1, expected: BeforeAll},
		{name: "in a gap", target: 10, expected: len(seq)},
		{name: "past the end", target: 25, expected: len(seq)},
		{name: "end is exclusive", target: 20, expected: len(seq)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindLowIndexInSortedIntervals(seq, spanLo, spanWidth, tt.target))
		})
	}
}

func TestGetIntersectingIntervals(t *testing.T) {
	seq := []span{{0, 5}, {5, 4}, {12, 8}}

	t.Run("left adjacent straddler included, gap excluded", func(t *testing.T) {
		got := GetIntersectingIntervals(seq, spanLo, spanWidth, 4, 13)
		assert.Equal(t, []span{{0, 5}, {5, 4}, {12, 8}}, got)
	})

	t.Run("range inside a gap only touches neighbor", func(t *testing.T) {
		got := GetIntersectingIntervals(seq, spanLo, spanWidth, 9.5, 10)
		assert.Empty(t, got)
	})

	t.Run("inverted range is a no-op", func(t *testing.T) {
		got := GetIntersectingIntervals(seq, spanLo, spanWidth, 13, 4)
		assert.Empty(t, got)
	})

	t.Run("empty sequence is a no-op", func(t *testing.T) {
		got := GetIntersectingIntervals(nil, spanLo, spanWidth, 0, 100)
		assert.Empty(t, got)
	})
}

func TestIterateOverIntersectingIntervalsAscending(t *testing.T) {
	seq := []span{{0, 5}, {5, 4}, {12, 8}, {20, 2}}

	var indexes []int
	IterateOverIntersectingIntervals(seq, spanLo, spanWidth, 0, 50, func(i int, _ span) {
		indexes = append(indexes, i)
	})
	assert.Equal(t, []int{0, 1, 2, 3}, indexes)
}
