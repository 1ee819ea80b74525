// Package interval provides binary search and range-intersection
// primitives over implicit sorted interval sequences. Sequences are
// modeled as a slice of arbitrary elements plus accessor functions, so
// slices, counter samples and CPU occupancy rows can all share the same
// search code without copying their data into a common shape.
package interval

// BeforeAll is returned by the search functions when the target sits
// before every element of a non-empty sequence, and by
// FindLowIndexInSortedArray for an empty sequence. It is never a valid
// index, so callers must branch on it explicitly.
const BeforeAll = -1

// FindLowIndexInSortedArray returns the smallest index i for which
// key(s[i]) >= target. Ties resolve to the first exact match. An empty
// sequence returns BeforeAll, which is distinct both from a valid index
// 0 and from "past the end" (which for an empty sequence would also be
// 0). When every key is below target, len(s) is returned.
func FindLowIndexInSortedArray[E any](s []E, key func(E) float64, target float64) int {
	if len(s) == 0 {
		return BeforeAll
	}
	lo, hi := 0, len(s)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if key(s[mid]) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// FindLowIndexInSortedIntervals treats s as a sequence of sorted,
// non-overlapping half-open intervals [lo, lo+width) and returns the
// index of the interval containing target. It returns BeforeAll when
// target sits before the first interval and len(s) when target sits at
// or past the end of the last interval or in a gap between intervals.
func FindLowIndexInSortedIntervals[E any](s []E, lo, width func(E) float64, target float64) int {
	first := FindLowIndexInSortedArray(s, lo, target)
	if first == BeforeAll {
		return len(s)
	}
	if first == 0 {
		if len(s) > 0 && contains(s[0], lo, width, target) {
			return 0
		}
		return BeforeAll
	}
	if first < len(s) && contains(s[first], lo, width, target) {
		return first
	}
	if contains(s[first-1], lo, width, target) {
		return first - 1
	}
	return len(s)
}

func contains[E any](e E, lo, width func(E) float64, target float64) bool {
	l := lo(e)
	return target >= l && target < l+width(e)
}

// IterateOverIntersectingIntervals visits, in ascending order, every
// interval of s that overlaps [rangeLo, rangeHi), including a
// left-adjacent interval that straddles rangeLo. It is a no-op when
// rangeLo > rangeHi or the sequence is empty.
func IterateOverIntersectingIntervals[E any](s []E, lo, width func(E) float64, rangeLo, rangeHi float64, visit func(index int, e E)) {
	if len(s) == 0 || rangeLo > rangeHi {
		return
	}
	i := FindLowIndexInSortedArray(s, lo, rangeLo)
	if i > 0 {
		if lo(s[i-1])+width(s[i-1]) >= rangeLo {
			visit(i-1, s[i-1])
		}
	}
	for ; i < len(s); i++ {
		if lo(s[i]) > rangeHi {
			break
		}
		visit(i, s[i])
	}
}

// GetIntersectingIntervals collects the elements that
// IterateOverIntersectingIntervals would visit.
func GetIntersectingIntervals[E any](s []E, lo, width func(E) float64, rangeLo, rangeHi float64) []E {
	var out []E
	IterateOverIntersectingIntervals(s, lo, width, rangeLo, rangeHi, func(_ int, e E) {
		out = append(out, e)
	})
	return out
}
