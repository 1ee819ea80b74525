package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceboard/traceboard/internal/core/model"
)

func sampleModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New()

	thread := m.GetOrCreateProcess(100).GetOrCreateThread(101)
	thread.Name = "RenderThread"
	outer := model.NewSlice("frame", 0, 1, nil)
	outer.Duration = 4
	inner := model.NewSlice("draw", 0, 2, nil)
	inner.Duration = 1
	outer.SubSlices = append(outer.SubSlices, inner)
	thread.AppendSlice(0, outer)
	thread.AppendSlice(1, inner)

	counter := m.GetOrCreateProcess(100).GetOrCreateCounter("", "mem")
	counter.AddSeries("used")
	counter.AppendSample(1, 10)
	counter.AppendSample(2, 12)

	cpu := m.GetOrCreateCPU(0)
	running := model.NewSlice("app", 0, 1, nil)
	running.Duration = 2
	cpu.Slices = append(cpu.Slices, running)

	require.NoError(t, m.UpdateBounds())
	return m
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(sampleModel(t))

	require.Len(t, s.Processes, 1)
	require.Len(t, s.Processes[0].Threads, 1)
	thread := s.Processes[0].Threads[0]
	assert.Equal(t, "RenderThread", thread.Name)
	assert.Equal(t, 2, thread.SliceCount)
	assert.Equal(t, 1, thread.MaxDepth)
	assert.Equal(t, 1.0, thread.Min)
	assert.Equal(t, 5.0, thread.Max)

	require.Len(t, s.Processes[0].Counters, 1)
	counter := s.Processes[0].Counters[0]
	assert.Equal(t, ".mem", counter.ID)
	assert.Equal(t, "process 100", counter.Parent)
	assert.Equal(t, 2, counter.SampleCount)
	assert.Equal(t, 12.0, counter.MaxTotal)

	require.Len(t, s.CPUs, 1)
	assert.Equal(t, 1, s.CPUs[0].SliceCount)
}

func TestSummaryUnnamedThreadFallback(t *testing.T) {
	m := model.New()
	thread := m.GetOrCreateProcess(9).GetOrCreateThread(10)
	s := model.NewSlice("work", 0, 0, nil)
	s.Duration = 1
	thread.AppendSlice(0, s)
	require.NoError(t, m.UpdateBounds())

	summary := BuildSummary(m)
	require.Len(t, summary.Processes, 1)
	require.Len(t, summary.Processes[0].Threads, 1)
	assert.Equal(t, "9:10", summary.Processes[0].Threads[0].Name)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter().Format(&buf, BuildSummary(sampleModel(t))))

	out := buf.String()
	assert.Contains(t, out, "Timeline:")
	assert.Contains(t, out, "RenderThread")
	assert.Contains(t, out, ".mem")
	assert.Contains(t, out, "┌")
	assert.NotContains(t, out, "import problem")
}

func TestTableFormatterReportsImportErrors(t *testing.T) {
	m := sampleModel(t)
	m.ImportErrors = append(m.ImportErrors, "line 3: malformed event")

	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter().Format(&buf, BuildSummary(m)))
	assert.Contains(t, buf.String(), "1 import problem(s):")
	assert.Contains(t, buf.String(), "line 3: malformed event")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, BuildSummary(sampleModel(t))))

	var decoded Summary
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Processes, 1)
	assert.Equal(t, 100, decoded.Processes[0].PID)
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter().Format(&buf, BuildSummary(sampleModel(t))))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "pid,tid,name,slices,max_depth,non_nested,cpu_slices,min_ms,max_ms", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "100,101,RenderThread,2,1,0,0,"))
}
