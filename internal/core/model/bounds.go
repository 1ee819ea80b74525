package model

// Bounds tracks the inclusive [Min, Max] timestamp range of an entity.
// Set reports whether any value has been recorded; a zero Bounds means
// the entity has no timed content yet.
type Bounds struct {
	Min float64
	Max float64
	Set bool
}

// Reset clears the range.
func (b *Bounds) Reset() {
	*b = Bounds{}
}

// AddValue widens the range to include v.
func (b *Bounds) AddValue(v float64) {
	if !b.Set {
		b.Min, b.Max, b.Set = v, v, true
		return
	}
	if v < b.Min {
		b.Min = v
	}
	if v > b.Max {
		b.Max = v
	}
}

// AddBounds widens the range to include another range.
func (b *Bounds) AddBounds(o Bounds) {
	if !o.Set {
		return
	}
	b.AddValue(o.Min)
	b.AddValue(o.Max)
}

// Range returns Max-Min, or 0 when no value has been recorded.
func (b Bounds) Range() float64 {
	if !b.Set {
		return 0
	}
	return b.Max - b.Min
}
