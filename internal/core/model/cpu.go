package model

import "fmt"

// CPU holds the scheduler activity recorded for one core. A core runs
// exactly one entity at any instant, so Slices is a single flat,
// non-overlapping, time-ordered list.
type CPU struct {
	Number   int
	Slices   []*Slice
	Counters map[string]*Counter

	Bounds Bounds
}

func newCPU(number int) *CPU {
	return &CPU{
		Number:   number,
		Counters: make(map[string]*Counter),
	}
}

// CounterParentName implements CounterParent.
func (c *CPU) CounterParentName() string {
	return fmt.Sprintf("cpu %d", c.Number)
}

// GetOrCreateCounter returns the counter identified by category and
// name, creating it on first access.
func (c *CPU) GetOrCreateCounter(category, name string) *Counter {
	id := category + "." + name
	ctr, ok := c.Counters[id]
	if !ok {
		ctr = newCounter(c, category, name)
		c.Counters[id] = ctr
	}
	return ctr
}

// GetAllCounters returns the CPU counters ordered by id.
func (c *CPU) GetAllCounters() []*Counter {
	return sortedCounters(c.Counters)
}

// ShiftTimestampsForward moves every slice of the CPU by delta.
// Counters are shifted separately by the model.
func (c *CPU) ShiftTimestampsForward(delta float64) {
	for _, s := range c.Slices {
		s.ShiftTimestampForward(delta)
	}
}

// UpdateBounds recomputes the CPU's timestamp range from its slices.
func (c *CPU) UpdateBounds() {
	c.Bounds.Reset()
	if len(c.Slices) == 0 {
		return
	}
	c.Bounds.AddValue(c.Slices[0].Start)
	c.Bounds.AddValue(c.Slices[len(c.Slices)-1].End())
}
