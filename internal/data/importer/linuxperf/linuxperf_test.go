package linuxperf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceboard/traceboard/internal/core/model"
)

func joinLines(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestCanImport(t *testing.T) {
	assert.True(t, CanImport([]byte("# tracer: nop\n")))
	assert.True(t, CanImport(joinLines(
		"          adbd-2000  [001]  1000.100000: sched_switch: prev_comm=adbd prev_pid=2000 prev_prio=120 prev_state=S ==> next_comm=app next_pid=42 next_prio=120",
	)))
	assert.False(t, CanImport([]byte(`[{"ph":"B"}]`)))
	assert.False(t, CanImport([]byte("just some text\nwith two lines\n")))
}

func TestSchedSwitchBuildsCPUSlices(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"# tracer: nop",
		"        <idle>-0     [000]  1.000000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.001000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
		"        <idle>-0     [000]  1.002000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.003000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=R ==> next_comm=swapper next_pid=0 next_prio=120",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	require.Empty(t, m.ImportErrors)

	cpu := m.CPUs[0]
	require.NotNil(t, cpu)
	// The idle task never produces a slice, so only app's two runs remain.
	require.Len(t, cpu.Slices, 2)
	first := cpu.Slices[0]
	assert.Equal(t, "app", first.Title)
	assert.Equal(t, 1000.0, first.Start)
	assert.Equal(t, 1.0, first.Duration)
	assert.Equal(t, "S", first.Args["stateWhenDescheduled"])
	assert.Equal(t, 1002.0, cpu.Slices[1].Start)
}

func TestPerThreadCPUSliceSynthesis(t *testing.T) {
	m := model.New()
	thread := m.GetOrCreateProcess(7).GetOrCreateThread(42)

	trace := joinLines(
		"        <idle>-0     [000]  1.000000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.001000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
		"        <idle>-0     [000]  1.002000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.003000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=D ==> next_comm=swapper next_pid=0 next_prio=120",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())

	require.Len(t, thread.CPUSlices, 3)
	assert.Equal(t, "Running", thread.CPUSlices[0].Title)
	assert.Equal(t, 1000.0, thread.CPUSlices[0].Start)
	// The gap carries the state the thread was descheduled with.
	assert.Equal(t, "Sleeping", thread.CPUSlices[1].Title)
	assert.Equal(t, 1001.0, thread.CPUSlices[1].Start)
	assert.Equal(t, 1.0, thread.CPUSlices[1].Duration)
	assert.Equal(t, "Running", thread.CPUSlices[2].Title)

	// Full coverage: no holes between consecutive slices.
	for i := 1; i < len(thread.CPUSlices); i++ {
		assert.Equal(t, thread.CPUSlices[i-1].End(), thread.CPUSlices[i].Start)
	}
}

func TestUnknownDeschedStateIsHardError(t *testing.T) {
	m := model.New()
	m.GetOrCreateProcess(7).GetOrCreateThread(42)

	trace := joinLines(
		"        <idle>-0     [000]  1.000000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.001000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=Y ==> next_comm=swapper next_pid=0 next_prio=120",
		"        <idle>-0     [000]  1.002000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.003000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
	)

	err := New(m, trace, false).ImportEvents()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Y"`)
}

func TestAdditionalImportWithoutClockSyncRollsBack(t *testing.T) {
	m := model.New()
	existing := m.GetOrCreateProcess(1).GetOrCreateThread(42)

	trace := joinLines(
		"        <idle>-0     [000]  1.000000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.001000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
		"           app-43    [001]  1.002000: 0: B|43|draw",
		"           app-43    [001]  1.003000: 0: E",
		"           app-43    [001]  1.004000: 0: C|99|frames|3",
	)

	require.NoError(t, New(m, trace, true).ImportEvents())

	// Everything the pass created is gone again.
	assert.Empty(t, m.CPUs)
	require.Len(t, m.Processes, 1)
	require.Contains(t, m.Processes, 1)
	require.Len(t, m.Processes[1].Threads, 1)
	assert.Same(t, existing, m.Processes[1].Threads[42])
	assert.Empty(t, existing.CPUSlices)

	require.Len(t, m.ImportErrors, 1)
	assert.Contains(t, m.ImportErrors[0], "clock sync")
}

func TestRollbackRestoresPreExistingEntities(t *testing.T) {
	m := model.New()

	// pid==tid overlap: the kernel trace's marks land on a thread the
	// primary trace already filled.
	thread := m.GetOrCreateProcess(42).GetOrCreateThread(42)
	existing := model.NewSlice("frame", 0, 1.0, nil)
	existing.Duration = 2
	thread.AppendSlice(0, existing)

	cpu := m.GetOrCreateCPU(0)
	prior := model.NewSlice("app", 0, 0.5, nil)
	prior.Duration = 0.5
	cpu.Slices = append(cpu.Slices, prior)

	counter := m.GetOrCreateProcess(42).GetOrCreateCounter("", "frames")
	counter.AddSeries("value")
	counter.AppendSample(1.0, 7)

	trace := joinLines(
		"           app-42    [000]  1.000000: 0: B|42|draw",
		"           app-42    [000]  1.100000: 0: E",
		"           app-42    [000]  1.200000: 0: C|42|frames|3",
		"        <idle>-0     [000]  1.300000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  1.400000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
	)

	require.NoError(t, New(m, trace, true).ImportEvents())
	require.Len(t, m.ImportErrors, 1)
	assert.Contains(t, m.ImportErrors[0], "clock sync")

	// Everything appended to pre-existing entities is gone again.
	require.Len(t, thread.SubRows, 1)
	require.Len(t, thread.SubRows[0], 1)
	assert.Same(t, existing, thread.SubRows[0][0])
	assert.Equal(t, "", thread.Name)

	require.Len(t, cpu.Slices, 1)
	assert.Same(t, prior, cpu.Slices[0])

	assert.Equal(t, []float64{1.0}, counter.Timestamps)
	assert.Equal(t, []float64{7}, counter.Samples)
}

func TestClockSyncShiftsAdditionalImport(t *testing.T) {
	m := model.New()
	thread := m.GetOrCreateProcess(7).GetOrCreateThread(42)

	trace := joinLines(
		"           app-42    [000]  1.000000: 0: trace_event_clock_sync: parent_ts=2.5",
		"        <idle>-0     [000]  2.000000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=app next_pid=42 next_prio=120",
		"           app-42    [000]  2.500000: sched_switch: prev_comm=app prev_pid=42 prev_prio=120 prev_state=S ==> next_comm=swapper next_pid=0 next_prio=120",
	)

	require.NoError(t, New(m, trace, true).ImportEvents())
	require.Empty(t, m.ImportErrors)

	// parent_ts 2.5s against perf ts 1.0s shifts everything by +1500ms.
	cpu := m.CPUs[0]
	require.Len(t, cpu.Slices, 1)
	assert.Equal(t, 3500.0, cpu.Slices[0].Start)

	require.Len(t, thread.CPUSlices, 1)
	assert.Equal(t, 3500.0, thread.CPUSlices[0].Start)
	assert.Equal(t, 500.0, thread.CPUSlices[0].Duration)
}

func TestWorkqueuePairing(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"   kworker/0:1-25    [000]  1.000000: workqueue_execute_start: work struct ffff8800: function vmstat_update",
		"   kworker/0:1-25    [000]  1.500000: workqueue_execute_end: work struct ffff8800",
		"   kworker/0:1-25    [000]  1.600000: workqueue_execute_end: work struct ffff8801",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	require.Empty(t, m.ImportErrors)

	thread := m.Processes[25].Threads[25]
	require.NotNil(t, thread)
	assert.Equal(t, "kworker/0:1-25", thread.Name)
	require.Len(t, thread.SubRows[0], 1)
	s := thread.SubRows[0][0]
	assert.Equal(t, "vmstat_update", s.Title)
	assert.Equal(t, 1000.0, s.Start)
	assert.Equal(t, 500.0, s.Duration)
}

func TestTraceMarkNesting(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"           app-42    [001]  1.000000: 0: B|10|draw",
		"           app-42    [001]  1.100000: 0: B|10|flush",
		"           app-42    [001]  1.200000: 0: E",
		"           app-42    [001]  1.300000: 0: E",
		"           app-42    [001]  1.400000: 0: E",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	// The extra E on an empty stack is ignored without an error.
	require.Empty(t, m.ImportErrors)

	thread := m.Processes[42].Threads[42]
	assert.Equal(t, "app", thread.Name)
	require.Len(t, thread.SubRows, 2)
	draw := thread.SubRows[0][0]
	flush := thread.SubRows[1][0]
	assert.Equal(t, "draw", draw.Title)
	assert.Equal(t, 1000.0, draw.Start)
	assert.Equal(t, 300.0, draw.Duration)
	assert.Equal(t, "flush", flush.Title)
	assert.Equal(t, 100.0, flush.Duration)
	assert.Equal(t, []*model.Slice{flush}, draw.SubSlices)
}

func TestTraceMarkCounter(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"           app-42    [001]  1.000000: 0: C|10|frames|3",
		"           app-42    [001]  1.100000: 0: C|10|frames|5",
		"           app-42    [001]  1.200000: 0: X|10|frames|5",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())

	counter := m.Processes[10].Counters[".frames"]
	require.NotNil(t, counter)
	assert.Equal(t, []string{"value"}, counter.SeriesNames)
	assert.Equal(t, []float64{1000, 1100}, counter.Timestamps)
	assert.Equal(t, []float64{3, 5}, counter.Samples)

	require.Len(t, m.ImportErrors, 1)
	assert.Contains(t, m.ImportErrors[0], `"X"`)
}

func TestCPUCounters(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"     kworker-100     [001]  1.000000: cpu_frequency: state=800000 cpu_id=1",
		"     kworker-100     [001]  1.100000: cpufreq_interactive_target: cpu_id=1 load=55",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	require.Empty(t, m.ImportErrors)

	cpu := m.CPUs[1]
	require.NotNil(t, cpu)
	freq := cpu.Counters[".Frequency"]
	require.NotNil(t, freq)
	assert.Equal(t, []string{"state"}, freq.SeriesNames)
	assert.Equal(t, []float64{800000}, freq.Samples)

	load := cpu.Counters[".Load"]
	require.NotNil(t, load)
	assert.Equal(t, []float64{55}, load.Samples)
}

func TestMalformedLinesAreSoftErrors(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"this is not a trace line",
		"           app-42    [001]  1.000000: sched_switch: gibberish",
		"           app-42    [001]  1.100000: made_up_event: body",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	require.Len(t, m.ImportErrors, 3)
	assert.Contains(t, m.ImportErrors[0], "line 1")
	assert.Contains(t, m.ImportErrors[1], "sched_switch")
	assert.Contains(t, m.ImportErrors[2], "made_up_event")
}

func TestSchedWakeupIsRecordedQuietly(t *testing.T) {
	m := model.New()
	trace := joinLines(
		"        <idle>-0     [000]  1.000000: sched_wakeup: comm=app pid=42 prio=120 success=1 target_cpu=000",
		"        <idle>-0     [000]  1.100000: sched_wakeup: nonsense",
	)

	require.NoError(t, New(m, trace, false).ImportEvents())
	require.Len(t, m.ImportErrors, 1)
	assert.Contains(t, m.ImportErrors[0], "sched_wakeup")
}
