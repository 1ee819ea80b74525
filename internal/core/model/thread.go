package model

import "fmt"

// Thread holds the slices recorded for one thread of a process.
//
// SubRows is indexed by nesting depth: SubRows[0] carries root slices
// and SubRows[d] the slices opened while d others were already open.
// Within any subrow, slices are sorted ascending by start and are
// mutually non-overlapping; a slice at depth d is fully contained in
// its parent's interval at depth d-1.
//
// NonNestedSubRows carries slices explicitly exempted from stack-based
// nesting, packed greedily into the first bucket with room.
//
// CPUSlices is only populated for models built from a Linux-perf trace
// and describes, gap-free, what the thread was doing on a CPU.
type Thread struct {
	Process *Process
	TID     int
	Name    string

	SubRows          [][]*Slice
	NonNestedSubRows [][]*Slice
	CPUSlices        []*Slice

	Bounds Bounds
}

func newThread(process *Process, tid int) *Thread {
	return &Thread{
		Process: process,
		TID:     tid,
		SubRows: make([][]*Slice, 1),
	}
}

// UserFriendlyName returns the thread name, or a pid/tid fallback.
func (t *Thread) UserFriendlyName() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%d:%d", t.Process.PID, t.TID)
}

// AppendSlice places a closed slice on the subrow for the given
// nesting depth, growing SubRows as needed.
func (t *Thread) AppendSlice(depth int, s *Slice) {
	for len(t.SubRows) <= depth {
		t.SubRows = append(t.SubRows, nil)
	}
	t.SubRows[depth] = append(t.SubRows[depth], s)
}

// AddNonNestedSlice packs a closed slice into the first non-nested
// bucket whose last slice ends at or before the new slice's start. A
// new bucket is opened when no existing bucket has room.
func (t *Thread) AddNonNestedSlice(s *Slice) {
	for i, bucket := range t.NonNestedSubRows {
		last := bucket[len(bucket)-1]
		if s.Start >= last.End() {
			t.NonNestedSubRows[i] = append(bucket, s)
			return
		}
	}
	t.NonNestedSubRows = append(t.NonNestedSubRows, []*Slice{s})
}

// IsEmpty reports whether the thread recorded no slices at all.
func (t *Thread) IsEmpty() bool {
	for _, row := range t.SubRows {
		if len(row) > 0 {
			return false
		}
	}
	for _, bucket := range t.NonNestedSubRows {
		if len(bucket) > 0 {
			return false
		}
	}
	return len(t.CPUSlices) == 0
}

// ShiftTimestampsForward moves every slice of the thread by delta.
// Rows cover each slice exactly once, children included, so the shift
// is intentionally non-recursive.
func (t *Thread) ShiftTimestampsForward(delta float64) {
	for _, row := range t.SubRows {
		for _, s := range row {
			s.ShiftTimestampForward(delta)
		}
	}
	for _, bucket := range t.NonNestedSubRows {
		for _, s := range bucket {
			s.ShiftTimestampForward(delta)
		}
	}
	for _, s := range t.CPUSlices {
		s.ShiftTimestampForward(delta)
	}
}

// UpdateBounds recomputes the thread's timestamp range from its rows.
// Rows are sorted, so only the first and last slice of each row matter.
func (t *Thread) UpdateBounds() {
	t.Bounds.Reset()
	rows := make([][]*Slice, 0, len(t.SubRows)+len(t.NonNestedSubRows)+1)
	rows = append(rows, t.SubRows...)
	rows = append(rows, t.NonNestedSubRows...)
	rows = append(rows, t.CPUSlices)
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		t.Bounds.AddValue(row[0].Start)
		t.Bounds.AddValue(row[len(row)-1].End())
	}
}
