package model

// Slice is a named, colored time interval. Importers create a slice
// when they see a begin event and fill in Duration when the matching
// end event arrives; a slice closed by autoclose instead of a real end
// event carries DidNotFinish. Once closed a slice is immutable, except
// for Selected which is owned by presentation code and never set during
// import.
//
// Nested children are reachable through SubSlices; slices never hold a
// parent back-pointer. Every slice, root or child, is also a member of
// exactly one thread subrow (or of a CPU slice list), which is what the
// timestamp-shifting code iterates over.
type Slice struct {
	Title        string
	ColorID      int
	Start        float64 // milliseconds
	Duration     float64 // milliseconds; meaningless while the slice is open
	Args         map[string]any
	SubSlices    []*Slice
	DidNotFinish bool
	Selected     bool
}

// NewSlice returns an open slice starting at start.
func NewSlice(title string, colorID int, start float64, args map[string]any) *Slice {
	return &Slice{
		Title:   title,
		ColorID: colorID,
		Start:   start,
		Args:    args,
	}
}

// End returns the exclusive end timestamp of a closed slice.
func (s *Slice) End() float64 {
	return s.Start + s.Duration
}

// ShiftTimestampForward moves the slice itself by delta. Children are
// not touched: they live in their own subrow and are shifted when that
// row is walked.
func (s *Slice) ShiftTimestampForward(delta float64) {
	s.Start += delta
}
