package model

import "fmt"

// Process groups the threads and counters recorded for one pid.
type Process struct {
	PID      int
	Threads  map[int]*Thread
	Counters map[string]*Counter
}

func newProcess(pid int) *Process {
	return &Process{
		PID:      pid,
		Threads:  make(map[int]*Thread),
		Counters: make(map[string]*Counter),
	}
}

// CounterParentName implements CounterParent.
func (p *Process) CounterParentName() string {
	return fmt.Sprintf("process %d", p.PID)
}

// GetOrCreateThread returns the thread for tid, creating it on first
// access.
func (p *Process) GetOrCreateThread(tid int) *Thread {
	t, ok := p.Threads[tid]
	if !ok {
		t = newThread(p, tid)
		p.Threads[tid] = t
	}
	return t
}

// GetOrCreateCounter returns the counter identified by category and
// name, creating it on first access.
func (p *Process) GetOrCreateCounter(category, name string) *Counter {
	id := category + "." + name
	c, ok := p.Counters[id]
	if !ok {
		c = newCounter(p, category, name)
		p.Counters[id] = c
	}
	return c
}

// GetAllCounters returns the process counters ordered by id.
func (p *Process) GetAllCounters() []*Counter {
	return sortedCounters(p.Counters)
}
