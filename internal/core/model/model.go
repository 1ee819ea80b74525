// Package model owns the normalized timeline reconstructed from one or
// more execution traces: processes, threads, CPUs, nested slices and
// time-series counters. Entities are created lazily by importers
// through get-or-create accessors, mutated only by the importer that
// owns the current pass, and treated as read-only by consumers once the
// import session completes.
package model

import (
	"sort"

	"github.com/traceboard/traceboard/internal/util"
)

// Model is the root of the reconstructed timeline.
type Model struct {
	Processes map[int]*Process
	CPUs      map[int]*CPU

	// ImportErrors collects soft import problems in the order they
	// were encountered. Hard failures abort the import instead.
	ImportErrors []string

	// Bounds is the reported global timestamp range. After a
	// zero-and-boost import session it is wider than the actual data
	// range by 15% on each side, for display convenience; the slice
	// and counter data itself is never padded.
	Bounds Bounds
}

// New returns an empty model.
func New() *Model {
	return &Model{
		Processes: make(map[int]*Process),
		CPUs:      make(map[int]*CPU),
	}
}

// GetOrCreateProcess returns the process for pid, creating it on first
// access.
func (m *Model) GetOrCreateProcess(pid int) *Process {
	p, ok := m.Processes[pid]
	if !ok {
		p = newProcess(pid)
		m.Processes[pid] = p
	}
	return p
}

// GetOrCreateCPU returns the CPU for the given core number, creating
// it on first access.
func (m *Model) GetOrCreateCPU(number int) *CPU {
	c, ok := m.CPUs[number]
	if !ok {
		c = newCPU(number)
		m.CPUs[number] = c
	}
	return c
}

// AddImportError records a soft import problem and keeps going.
func (m *Model) AddImportError(msg string) {
	m.ImportErrors = append(m.ImportErrors, msg)
	util.LogWarn("import: " + msg)
}

// GetAllProcesses returns the processes ordered by pid.
func (m *Model) GetAllProcesses() []*Process {
	out := make([]*Process, 0, len(m.Processes))
	for _, p := range m.Processes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// GetAllThreads returns every thread of every process, ordered by
// (pid, tid).
func (m *Model) GetAllThreads() []*Thread {
	var out []*Thread
	for _, p := range m.GetAllProcesses() {
		tids := make([]int, 0, len(p.Threads))
		for tid := range p.Threads {
			tids = append(tids, tid)
		}
		sort.Ints(tids)
		for _, tid := range tids {
			out = append(out, p.Threads[tid])
		}
	}
	return out
}

// GetAllCPUs returns the CPUs ordered by core number.
func (m *Model) GetAllCPUs() []*CPU {
	out := make([]*CPU, 0, len(m.CPUs))
	for _, c := range m.CPUs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// GetAllCounters returns every process and CPU counter, processes
// first, in a deterministic order.
func (m *Model) GetAllCounters() []*Counter {
	var out []*Counter
	for _, p := range m.GetAllProcesses() {
		out = append(out, sortedCounters(p.Counters)...)
	}
	for _, c := range m.GetAllCPUs() {
		out = append(out, sortedCounters(c.Counters)...)
	}
	return out
}

func sortedCounters(counters map[string]*Counter) []*Counter {
	ids := make([]string, 0, len(counters))
	for id := range counters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Counter, 0, len(ids))
	for _, id := range ids {
		out = append(out, counters[id])
	}
	return out
}

// PruneEmptyThreads drops threads that recorded no slices in any
// subrow, non-nested bucket or CPU occupancy row. Threads whose only
// content is non-nested slices are deliberately kept.
func (m *Model) PruneEmptyThreads() {
	for _, p := range m.Processes {
		for tid, t := range p.Threads {
			if t.IsEmpty() {
				delete(p.Threads, tid)
			}
		}
	}
}

// UpdateBounds recomputes every entity's timestamp range and the
// global range. It fails when a counter violates its series/sample
// bookkeeping invariant.
func (m *Model) UpdateBounds() error {
	m.Bounds.Reset()
	for _, p := range m.Processes {
		for _, t := range p.Threads {
			t.UpdateBounds()
			m.Bounds.AddBounds(t.Bounds)
		}
		for _, c := range p.Counters {
			if err := c.UpdateBounds(); err != nil {
				return err
			}
			m.Bounds.AddBounds(c.Bounds)
		}
	}
	for _, cpu := range m.CPUs {
		cpu.UpdateBounds()
		m.Bounds.AddBounds(cpu.Bounds)
		for _, c := range cpu.Counters {
			if err := c.UpdateBounds(); err != nil {
				return err
			}
			m.Bounds.AddBounds(c.Bounds)
		}
	}
	return nil
}

// ShiftTimestampsForward moves every timestamp in the model by delta.
func (m *Model) ShiftTimestampsForward(delta float64) {
	for _, p := range m.Processes {
		for _, t := range p.Threads {
			t.ShiftTimestampsForward(delta)
		}
		for _, c := range p.Counters {
			c.ShiftTimestampsForward(delta)
		}
	}
	for _, cpu := range m.CPUs {
		cpu.ShiftTimestampsForward(delta)
		for _, c := range cpu.Counters {
			c.ShiftTimestampsForward(delta)
		}
	}
}
