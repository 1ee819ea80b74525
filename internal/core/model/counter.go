package model

import "fmt"

// CounterParent identifies the entity a counter hangs off, either a
// process or a CPU. It only exists so error messages can name the
// owner without the counter holding a typed back-pointer.
type CounterParent interface {
	CounterParentName() string
}

// Counter is a multi-series time-sampled value, e.g. a CPU frequency
// or a per-process allocation count. The series set is fixed after the
// first sample; Samples is flattened so that sample j of timestamp i
// lives at i*numSeries+j.
type Counter struct {
	Parent       CounterParent
	ID           string
	Name         string
	SeriesNames  []string
	SeriesColors []int
	Timestamps   []float64 // strictly ascending
	Samples      []float64 // len == NumSeries()*len(Timestamps)

	// Derived by UpdateBounds: the running per-timestamp sum across
	// series (same shape as Samples) and the largest per-timestamp
	// total.
	Totals   []float64
	MaxTotal float64

	Bounds Bounds
}

func newCounter(parent CounterParent, category, name string) *Counter {
	return &Counter{
		Parent: parent,
		ID:     category + "." + name,
		Name:   name,
	}
}

// NumSeries returns the number of registered series.
func (c *Counter) NumSeries() int {
	return len(c.SeriesNames)
}

// NumSamples returns the number of recorded timestamps.
func (c *Counter) NumSamples() int {
	return len(c.Timestamps)
}

// AddSeries registers one named series. All series must be registered
// before the first sample.
func (c *Counter) AddSeries(name string) {
	c.SeriesNames = append(c.SeriesNames, name)
	c.SeriesColors = append(c.SeriesColors, StringColorID(c.Name+"."+name))
}

// AppendSample records one value per registered series at ts.
func (c *Counter) AppendSample(ts float64, values ...float64) {
	c.Timestamps = append(c.Timestamps, ts)
	c.Samples = append(c.Samples, values...)
}

// ShiftTimestampsForward moves every sample timestamp by delta.
func (c *Counter) ShiftTimestampsForward(delta float64) {
	for i := range c.Timestamps {
		c.Timestamps[i] += delta
	}
}

// UpdateBounds recomputes the counter's timestamp range, Totals and
// MaxTotal. A series/sample count mismatch is a bookkeeping invariant
// violation and aborts the import.
func (c *Counter) UpdateBounds() error {
	c.Totals = c.Totals[:0]
	c.MaxTotal = 0
	c.Bounds.Reset()

	numSeries := c.NumSeries()
	if len(c.Samples) != numSeries*len(c.Timestamps) {
		return fmt.Errorf("counter %q of %s: have %d samples for %d series over %d timestamps",
			c.Name, c.Parent.CounterParentName(), len(c.Samples), numSeries, len(c.Timestamps))
	}
	if len(c.Timestamps) == 0 {
		return nil
	}

	c.Bounds.AddValue(c.Timestamps[0])
	c.Bounds.AddValue(c.Timestamps[len(c.Timestamps)-1])

	for i := range c.Timestamps {
		total := 0.0
		for j := 0; j < numSeries; j++ {
			total += c.Samples[i*numSeries+j]
			c.Totals = append(c.Totals, total)
		}
		// Seeded from the first timestamp so an all-negative counter
		// reports its true maximum, not zero.
		if i == 0 || total > c.MaxTotal {
			c.MaxTotal = total
		}
	}
	return nil
}
