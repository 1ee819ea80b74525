package formatter

import (
	"github.com/traceboard/traceboard/internal/core/model"
)

// BuildSummary flattens an imported model into the display view. The
// import session leaves the model's bounds up to date, so the summary
// only reads.
func BuildSummary(m *model.Model) *Summary {
	s := &Summary{
		Bounds:       m.Bounds,
		ImportErrors: m.ImportErrors,
	}

	threadsByPID := make(map[int][]ThreadSummary)
	for _, t := range m.GetAllThreads() {
		threadsByPID[t.Process.PID] = append(threadsByPID[t.Process.PID], buildThreadSummary(t))
	}

	for _, p := range m.GetAllProcesses() {
		ps := ProcessSummary{PID: p.PID, Threads: threadsByPID[p.PID]}
		for _, c := range p.GetAllCounters() {
			ps.Counters = append(ps.Counters, buildCounterSummary(c))
		}
		s.Processes = append(s.Processes, ps)
	}

	for _, cpu := range m.GetAllCPUs() {
		cs := CPUSummary{Number: cpu.Number, SliceCount: len(cpu.Slices)}
		for _, c := range cpu.GetAllCounters() {
			cs.Counters = append(cs.Counters, buildCounterSummary(c))
		}
		s.CPUs = append(s.CPUs, cs)
	}
	return s
}

func buildThreadSummary(t *model.Thread) ThreadSummary {
	ts := ThreadSummary{
		PID:           t.Process.PID,
		TID:           t.TID,
		Name:          t.UserFriendlyName(),
		CPUSliceCount: len(t.CPUSlices),
		Min:           t.Bounds.Min,
		Max:           t.Bounds.Max,
	}
	for depth, row := range t.SubRows {
		if len(row) == 0 {
			continue
		}
		ts.SliceCount += len(row)
		ts.MaxDepth = depth
	}
	for _, bucket := range t.NonNestedSubRows {
		ts.NonNestedCount += len(bucket)
	}
	return ts
}

func buildCounterSummary(c *model.Counter) CounterSummary {
	return CounterSummary{
		ID:          c.ID,
		Parent:      c.Parent.CounterParentName(),
		SeriesNames: c.SeriesNames,
		SampleCount: c.NumSamples(),
		MaxTotal:    c.MaxTotal,
	}
}
