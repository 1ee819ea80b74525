// Package linuxperf imports Linux ftrace/perf text logs: scheduler
// switches become CPU slices and per-thread occupancy rows, frequency
// and load events become CPU counters, workqueue pairs and userspace
// trace marks become kernel-thread slices. When imported as an
// additional trace the pass aligns its clock domain to the primary
// trace through trace_event_clock_sync records, and rolls itself back
// entirely when no such record exists.
package linuxperf

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/traceboard/traceboard/internal/core/model"
)

var (
	// Data lines look like:
	//   comm-pid  [cpu]  ts.uuuuuu: event: body
	// The comm itself may contain dashes and spaces, so the pid is the
	// last dash-separated number of the task field.
	lineRE = regexp.MustCompile(`^\s*(.+)-(\d+)\s+\[(\d+)\]\s+(\d+\.\d+):\s+([^:]+):\s(.*)$`)

	schedSwitchRE = regexp.MustCompile(
		`prev_comm=(.+) prev_pid=(\d+) prev_prio=(\d+) prev_state=(\S+) ==> next_comm=(.+) next_pid=(\d+) next_prio=(\d+)`)
	schedWakeupRE    = regexp.MustCompile(`comm=(.+) pid=(\d+) prio=(\d+) success=(\d+) target_cpu=(\d+)`)
	cpuFrequencyRE   = regexp.MustCompile(`state=(\d+) cpu_id=(\d+)`)
	cpufreqLoadRE    = regexp.MustCompile(`cpu_id=(\d+) load=(\d+)`)
	clockSyncRE      = regexp.MustCompile(`trace_event_clock_sync: parent_ts=(\d+\.?\d*)`)
	workqueueStartRE = regexp.MustCompile(`work struct (\S+): function (\S+)`)
	workqueueEndRE   = regexp.MustCompile(`work struct (\S+)`)
)

// deschedStateTitles maps a scheduler descheduling-state code to the
// title of the gap slice synthesized between two on-CPU intervals.
var deschedStateTitles = map[string]string{
	"S": "Sleeping",
	"R": "Runnable",
	"D": "I/O Wait",
	"T": "Stopped",
	"t": "Debug",
	"Z": "Zombie",
	"X": "Dead",
	"x": "Dead",
	"W": "WakeKill",
}

// CanImport reports whether the raw bytes look like an ftrace/perf
// text log: either an ftrace comment header or a data line within the
// first few lines.
func CanImport(data []byte) bool {
	text := string(data)
	if strings.HasPrefix(text, "# tracer:") {
		return true
	}
	checked := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if lineRE.MatchString(line) {
			return true
		}
		checked++
		if checked >= 20 {
			break
		}
	}
	return false
}

// cpuState tracks what a single core is currently running.
type cpuState struct {
	cpu            *model.CPU
	firstSliceIdx  int
	lastActivePID  int
	lastActiveComm string
	lastActivePrio int
	lastActiveTS   float64
	active         bool
}

// kernelThreadState tracks open slices on a synthetic kernel thread,
// either the B/E mark stack of one KPID or a workqueue pairing.
type kernelThreadState struct {
	thread     *model.Thread
	openSlices []*model.Slice // B/E stack
	openSlice  *model.Slice   // workqueue pairing
	closed     []*model.Slice // every slice placed this pass, for clock shifts
}

// onCPUInterval is one recorded sched_switch occupancy of a thread.
type onCPUInterval struct {
	start    float64
	duration float64
	state    string // descheduling-state code of this interval
	seq      int    // emission order, the tie-breaker for equal starts
}

type clockSyncRecord struct {
	perfTS   float64
	parentTS float64
}

// Importer is a single Linux-perf import pass over one raw trace.
type Importer struct {
	model      *model.Model
	data       []byte
	additional bool

	cpuStates       map[int]*cpuState
	markStates      map[int]*kernelThreadState
	workqueueStates map[string]*kernelThreadState
	intervalsByTID  map[int][]onCPUInterval
	clockSyncs      []clockSyncRecord
	seq             int

	// lastWakeupByTID records sched_wakeup timestamps. Nothing derives
	// state from them yet; they are kept so a runnable-state pass can
	// be layered on without touching the parser.
	lastWakeupByTID map[int]float64

	// counterBase remembers how many samples each touched counter had
	// before this pass, so clock alignment only shifts our samples and
	// rollback only removes them.
	counterBase map[*model.Counter]int

	// threadBases snapshots each touched kernel thread before this pass
	// mutates it: its name and the length of every subrow. Rollback
	// restores the snapshot.
	threadBases map[*model.Thread]*threadBaseline

	// Entities created by this pass, for the no-clock-sync rollback.
	createdCPUs        []int
	createdProcesses   []int
	createdThreads     [][2]int // pid, tid
	createdProcCounter []counterRef
	createdCPUCounter  []counterRef
}

type counterRef struct {
	owner int // pid or cpu number
	id    string
}

type threadBaseline struct {
	name    string
	subRows []int // length of each subrow at first touch
}

// New returns an importer bound to a model.
func New(m *model.Model, data []byte, additional bool) *Importer {
	return &Importer{
		model:           m,
		data:            data,
		additional:      additional,
		cpuStates:       make(map[int]*cpuState),
		markStates:      make(map[int]*kernelThreadState),
		workqueueStates: make(map[string]*kernelThreadState),
		intervalsByTID:  make(map[int][]onCPUInterval),
		lastWakeupByTID: make(map[int]float64),
		counterBase:     make(map[*model.Counter]int),
		threadBases:     make(map[*model.Thread]*threadBaseline),
	}
}

// ImportEvents runs the pass: parse every line, align clocks, then
// synthesize per-thread CPU occupancy rows. Only an unrecognized
// descheduling state is a hard error; malformed lines are logged and
// skipped, and a missing clock sync on an additional import rolls the
// whole pass back without failing the session.
func (im *Importer) ImportEvents() error {
	im.importCPUData()
	if !im.alignClocks() {
		return nil
	}
	return im.buildPerThreadCPUSlices()
}

func (im *Importer) importCPUData() {
	lines := strings.Split(string(im.data), "\n")
	for i, line := range lines {
		lineNumber := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			im.model.AddImportError(fmt.Sprintf("line %d: malformed line: %s", lineNumber, trimmed))
			continue
		}
		comm := m[1]
		kpid, _ := strconv.Atoi(m[2])
		cpuNumber, _ := strconv.Atoi(m[3])
		seconds, _ := strconv.ParseFloat(m[4], 64)
		ts := seconds * 1000
		eventName := m[5]
		body := m[6]

		switch eventName {
		case "sched_switch":
			im.handleSchedSwitch(cpuNumber, ts, body, lineNumber)
		case "sched_wakeup":
			im.handleSchedWakeup(ts, body, lineNumber)
		case "cpu_frequency":
			im.handleCPUFrequency(ts, body, lineNumber)
		case "cpufreq_interactive_already", "cpufreq_interactive_target":
			im.handleCPULoad(ts, body, lineNumber)
		case "workqueue_execute_start":
			im.handleWorkqueueStart(comm, kpid, ts, body, lineNumber)
		case "workqueue_execute_end":
			im.handleWorkqueueEnd(comm, kpid, ts, body, lineNumber)
		case "0":
			im.handleTraceMark(comm, kpid, ts, body, lineNumber)
		default:
			im.model.AddImportError(fmt.Sprintf("line %d: unrecognized event kind %q", lineNumber, eventName))
		}
	}
}

func (im *Importer) handleSchedSwitch(cpuNumber int, ts float64, body string, lineNumber int) {
	ev := schedSwitchRE.FindStringSubmatch(body)
	if ev == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed sched_switch event", lineNumber))
		return
	}
	prevState := ev[4]
	nextComm := ev[5]
	nextPID, _ := strconv.Atoi(ev[6])
	nextPrio, _ := strconv.Atoi(ev[7])

	st := im.getOrCreateCPUState(cpuNumber)
	im.closeRunningSlice(st, prevState, ts)
	st.lastActivePID = nextPID
	st.lastActiveComm = nextComm
	st.lastActivePrio = nextPrio
	st.lastActiveTS = ts
	st.active = true
}

// closeRunningSlice ends the previously running interval on a core,
// unless the core was idle (pid 0).
func (im *Importer) closeRunningSlice(st *cpuState, prevState string, ts float64) {
	if !st.active || st.lastActivePID == 0 {
		return
	}
	duration := ts - st.lastActiveTS
	slice := model.NewSlice(st.lastActiveComm, model.StringColorID(st.lastActiveComm), st.lastActiveTS,
		map[string]any{"stateWhenDescheduled": prevState})
	slice.Duration = duration
	st.cpu.Slices = append(st.cpu.Slices, slice)

	im.intervalsByTID[st.lastActivePID] = append(im.intervalsByTID[st.lastActivePID], onCPUInterval{
		start:    st.lastActiveTS,
		duration: duration,
		state:    prevState,
		seq:      im.seq,
	})
	im.seq++
}

func (im *Importer) handleSchedWakeup(ts float64, body string, lineNumber int) {
	ev := schedWakeupRE.FindStringSubmatch(body)
	if ev == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed sched_wakeup event", lineNumber))
		return
	}
	tid, _ := strconv.Atoi(ev[2])
	im.lastWakeupByTID[tid] = ts
}

func (im *Importer) handleCPUFrequency(ts float64, body string, lineNumber int) {
	ev := cpuFrequencyRE.FindStringSubmatch(body)
	if ev == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed cpu_frequency event", lineNumber))
		return
	}
	value, _ := strconv.ParseFloat(ev[1], 64)
	cpuNumber, _ := strconv.Atoi(ev[2])
	im.addCPUCounterSample(cpuNumber, "Frequency", ts, value)
}

func (im *Importer) handleCPULoad(ts float64, body string, lineNumber int) {
	ev := cpufreqLoadRE.FindStringSubmatch(body)
	if ev == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed cpufreq_interactive event", lineNumber))
		return
	}
	cpuNumber, _ := strconv.Atoi(ev[1])
	value, _ := strconv.ParseFloat(ev[2], 64)
	im.addCPUCounterSample(cpuNumber, "Load", ts, value)
}

func (im *Importer) addCPUCounterSample(cpuNumber int, name string, ts, value float64) {
	st := im.getOrCreateCPUState(cpuNumber)
	counter, created := getOrCreateCounter(st.cpu.Counters, st.cpu.GetOrCreateCounter, "", name)
	if created {
		im.createdCPUCounter = append(im.createdCPUCounter, counterRef{owner: cpuNumber, id: counter.ID})
		counter.AddSeries("state")
	}
	if _, ok := im.counterBase[counter]; !ok {
		im.counterBase[counter] = counter.NumSamples()
	}
	counter.AppendSample(ts, value)
}

func (im *Importer) handleWorkqueueStart(comm string, kpid int, ts float64, body string, lineNumber int) {
	ev := workqueueStartRE.FindStringSubmatch(body)
	if ev == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed workqueue_execute_start event", lineNumber))
		return
	}
	kt := im.getOrCreateWorkqueueState(comm, kpid)
	kt.openSlice = model.NewSlice(ev[2], model.StringColorID(ev[2]), ts, nil)
}

func (im *Importer) handleWorkqueueEnd(comm string, kpid int, ts float64, body string, lineNumber int) {
	if workqueueEndRE.FindStringSubmatch(body) == nil {
		im.model.AddImportError(fmt.Sprintf("line %d: malformed workqueue_execute_end event", lineNumber))
		return
	}
	kt := im.getOrCreateWorkqueueState(comm, kpid)
	if kt.openSlice == nil {
		// end without a start, e.g. a truncated trace head
		return
	}
	slice := kt.openSlice
	kt.openSlice = nil
	slice.Duration = ts - slice.Start
	kt.thread.AppendSlice(0, slice)
	kt.closed = append(kt.closed, slice)
}

func (im *Importer) handleTraceMark(comm string, kpid int, ts float64, body string, lineNumber int) {
	if sync := clockSyncRE.FindStringSubmatch(body); sync != nil {
		parentSeconds, err := strconv.ParseFloat(sync[1], 64)
		if err != nil {
			im.model.AddImportError(fmt.Sprintf("line %d: malformed clock sync record", lineNumber))
			return
		}
		im.clockSyncs = append(im.clockSyncs, clockSyncRecord{perfTS: ts, parentTS: parentSeconds * 1000})
		return
	}

	parts := strings.Split(body, "|")
	switch parts[0] {
	case "B":
		if len(parts) < 3 {
			im.model.AddImportError(fmt.Sprintf("line %d: malformed B trace mark", lineNumber))
			return
		}
		name := parts[2]
		kt := im.getOrCreateMarkState(comm, kpid)
		kt.openSlices = append(kt.openSlices, model.NewSlice(name, model.StringColorID(name), ts, nil))
	case "E":
		kt := im.getOrCreateMarkState(comm, kpid)
		if len(kt.openSlices) == 0 {
			// unmatched end, e.g. the begin predates the trace
			return
		}
		slice := kt.openSlices[len(kt.openSlices)-1]
		kt.openSlices = kt.openSlices[:len(kt.openSlices)-1]
		slice.Duration = ts - slice.Start
		depth := len(kt.openSlices)
		if depth > 0 {
			parent := kt.openSlices[depth-1]
			parent.SubSlices = append(parent.SubSlices, slice)
		}
		kt.thread.AppendSlice(depth, slice)
		kt.closed = append(kt.closed, slice)
	case "C":
		if len(parts) < 4 {
			im.model.AddImportError(fmt.Sprintf("line %d: malformed C trace mark", lineNumber))
			return
		}
		pid, err := strconv.Atoi(parts[1])
		value, verr := strconv.ParseFloat(parts[3], 64)
		if err != nil || verr != nil {
			im.model.AddImportError(fmt.Sprintf("line %d: malformed C trace mark", lineNumber))
			return
		}
		proc := im.getOrCreateProcess(pid)
		counter, created := getOrCreateCounter(proc.Counters, proc.GetOrCreateCounter, "", parts[2])
		if created {
			im.createdProcCounter = append(im.createdProcCounter, counterRef{owner: pid, id: counter.ID})
			counter.AddSeries("value")
		}
		if _, ok := im.counterBase[counter]; !ok {
			im.counterBase[counter] = counter.NumSamples()
		}
		counter.AppendSample(ts, value)
	default:
		im.model.AddImportError(fmt.Sprintf("line %d: unrecognized trace mark %q", lineNumber, parts[0]))
	}
}

// alignClocks reconciles this trace's clock domain with the primary
// trace. It returns false when the pass was rolled back.
func (im *Importer) alignClocks() bool {
	if len(im.clockSyncs) == 0 {
		if im.additional {
			im.rollback()
			im.model.AddImportError("cannot import kernel trace without a clock sync")
			return false
		}
		// Primary import: there is nothing to align against, raw
		// timestamps stand.
		return true
	}

	shift := im.clockSyncs[0].parentTS - im.clockSyncs[0].perfTS

	for _, st := range im.cpuStates {
		for _, s := range st.cpu.Slices[st.firstSliceIdx:] {
			s.ShiftTimestampForward(shift)
		}
	}
	for counter, base := range im.counterBase {
		for i := base; i < len(counter.Timestamps); i++ {
			counter.Timestamps[i] += shift
		}
	}
	for _, kt := range im.markStates {
		shiftClosed(kt, shift)
	}
	for _, kt := range im.workqueueStates {
		shiftClosed(kt, shift)
	}
	for tid, intervals := range im.intervalsByTID {
		for i := range intervals {
			intervals[i].start += shift
		}
		im.intervalsByTID[tid] = intervals
	}
	for tid := range im.lastWakeupByTID {
		im.lastWakeupByTID[tid] += shift
	}
	return true
}

// shiftClosed moves every slice this pass placed on a kernel thread.
// Closed children are listed individually, so the shift stays
// non-recursive like the model's own row walks.
func shiftClosed(kt *kernelThreadState, shift float64) {
	for _, s := range kt.closed {
		s.ShiftTimestampForward(shift)
	}
}

// rollback undoes the whole pass: entities it created are removed, and
// everything it appended to pre-existing entities (CPU slices, counter
// samples, kernel-thread slices and names) is truncated back to the
// recorded baselines, leaving the model exactly as it was.
func (im *Importer) rollback() {
	for _, st := range im.cpuStates {
		st.cpu.Slices = st.cpu.Slices[:st.firstSliceIdx]
	}
	for counter, base := range im.counterBase {
		counter.Timestamps = counter.Timestamps[:base]
		counter.Samples = counter.Samples[:base*counter.NumSeries()]
	}
	for thread, baseline := range im.threadBases {
		thread.Name = baseline.name
		thread.SubRows = thread.SubRows[:len(baseline.subRows)]
		for i := range thread.SubRows {
			thread.SubRows[i] = thread.SubRows[i][:baseline.subRows[i]]
		}
	}
	for _, n := range im.createdCPUs {
		delete(im.model.CPUs, n)
	}
	for _, ref := range im.createdCPUCounter {
		if cpu, ok := im.model.CPUs[ref.owner]; ok {
			delete(cpu.Counters, ref.id)
		}
	}
	for _, pt := range im.createdThreads {
		if proc, ok := im.model.Processes[pt[0]]; ok {
			delete(proc.Threads, pt[1])
		}
	}
	for _, ref := range im.createdProcCounter {
		if proc, ok := im.model.Processes[ref.owner]; ok {
			delete(proc.Counters, ref.id)
		}
	}
	for _, pid := range im.createdProcesses {
		delete(im.model.Processes, pid)
	}
}

// buildPerThreadCPUSlices turns the recorded on-CPU intervals into a
// gap-free occupancy row per thread: one Running slice per interval,
// with the gap to the next interval labeled by the state the thread
// was descheduled with.
func (im *Importer) buildPerThreadCPUSlices() error {
	for _, thread := range im.model.GetAllThreads() {
		intervals := im.intervalsByTID[thread.TID]
		if len(intervals) == 0 {
			continue
		}
		// The sort is not guaranteed stable, so equal starts fall back
		// to emission order explicitly.
		sort.Slice(intervals, func(i, j int) bool {
			if intervals[i].start != intervals[j].start {
				return intervals[i].start < intervals[j].start
			}
			return intervals[i].seq < intervals[j].seq
		})

		slices := make([]*model.Slice, 0, 2*len(intervals)-1)
		for i, iv := range intervals {
			running := model.NewSlice("Running", model.StringColorID("Running"), iv.start, nil)
			running.Duration = iv.duration
			slices = append(slices, running)

			if i+1 == len(intervals) {
				break
			}
			title, ok := deschedStateTitles[iv.state]
			if !ok {
				return fmt.Errorf("unrecognized descheduling state %q", iv.state)
			}
			gapStart := iv.start + iv.duration
			gap := model.NewSlice(title, model.StringColorID(title), gapStart, nil)
			gap.Duration = intervals[i+1].start - gapStart
			slices = append(slices, gap)
		}
		thread.CPUSlices = slices
	}
	return nil
}

func (im *Importer) getOrCreateCPUState(cpuNumber int) *cpuState {
	st, ok := im.cpuStates[cpuNumber]
	if ok {
		return st
	}
	if _, exists := im.model.CPUs[cpuNumber]; !exists {
		im.createdCPUs = append(im.createdCPUs, cpuNumber)
	}
	cpu := im.model.GetOrCreateCPU(cpuNumber)
	st = &cpuState{cpu: cpu, firstSliceIdx: len(cpu.Slices)}
	im.cpuStates[cpuNumber] = st
	return st
}

func (im *Importer) getOrCreateProcess(pid int) *model.Process {
	if _, exists := im.model.Processes[pid]; !exists {
		im.createdProcesses = append(im.createdProcesses, pid)
	}
	return im.model.GetOrCreateProcess(pid)
}

// getOrCreateKernelThread returns the model thread for a KPID,
// tracking creations for rollback. Kernel threads live in a process
// keyed by their own KPID.
func (im *Importer) getOrCreateKernelThread(name string, kpid int) *model.Thread {
	proc := im.getOrCreateProcess(kpid)
	if _, exists := proc.Threads[kpid]; !exists {
		im.createdThreads = append(im.createdThreads, [2]int{kpid, kpid})
	}
	thread := proc.GetOrCreateThread(kpid)
	im.recordThreadBaseline(thread)
	if thread.Name == "" {
		thread.Name = name
	}
	return thread
}

// recordThreadBaseline snapshots a kernel thread the first time this
// pass touches it, before any mutation.
func (im *Importer) recordThreadBaseline(thread *model.Thread) {
	if _, ok := im.threadBases[thread]; ok {
		return
	}
	rows := make([]int, len(thread.SubRows))
	for i, row := range thread.SubRows {
		rows[i] = len(row)
	}
	im.threadBases[thread] = &threadBaseline{name: thread.Name, subRows: rows}
}

func (im *Importer) getOrCreateMarkState(comm string, kpid int) *kernelThreadState {
	kt, ok := im.markStates[kpid]
	if !ok {
		kt = &kernelThreadState{thread: im.getOrCreateKernelThread(comm, kpid)}
		im.markStates[kpid] = kt
	}
	return kt
}

func (im *Importer) getOrCreateWorkqueueState(comm string, kpid int) *kernelThreadState {
	key := fmt.Sprintf("%s-%d", comm, kpid)
	kt, ok := im.workqueueStates[key]
	if !ok {
		kt = &kernelThreadState{thread: im.getOrCreateKernelThread(key, kpid)}
		im.workqueueStates[key] = kt
	}
	return kt
}

// getOrCreateCounter wraps a model get-or-create accessor and reports
// whether the counter was created by this call.
func getOrCreateCounter(existing map[string]*model.Counter, create func(string, string) *model.Counter, category, name string) (*model.Counter, bool) {
	_, present := existing[category+"."+name]
	return create(category, name), !present
}
