// Package traceevent imports JSON arrays of phase-tagged trace events,
// either a bare array or an object carrying one under a traceEvents
// key. Begin/end phases rebuild call-stack-like nesting per thread,
// counter phases build multi-series counters, and whatever is still
// open at the end of the trace is autoclosed at the global maximum
// timestamp.
package traceevent

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/bytedance/sonic"

	"github.com/traceboard/traceboard/internal/core/model"
)

// traceEvent is one phase-tagged record. Timestamps arrive in
// microseconds and are converted to the model's milliseconds on use.
type traceEvent struct {
	Ph   string         `json:"ph"`
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Ts   float64        `json:"ts"`
	Uts  float64        `json:"uts"`
	Name string         `json:"name"`
	Cat  string         `json:"cat"`
	ID   any            `json:"id"`
	Args map[string]any `json:"args"`
}

type eventContainer struct {
	TraceEvents []traceEvent `json:"traceEvents"`
}

// CanImport reports whether the raw bytes look like JSON trace events:
// an array, or an object that can carry a traceEvents key.
func CanImport(data []byte) bool {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

type ptid struct {
	pid int
	tid int
}

// threadState tracks the open slices of one (pid, tid) pair: a stack
// for ordinary nesting and a composite-keyed map for slices explicitly
// exempted from nesting via args["ui-nest"] == "0".
type threadState struct {
	openSlices    []*model.Slice
	openNonNested map[string]*model.Slice
}

// Importer is a single trace-event import pass over one raw trace.
type Importer struct {
	model  *model.Model
	data   []byte
	states map[ptid]*threadState
}

// New returns an importer bound to a model. The additional flag is
// accepted for interface symmetry; trace-event timestamps are already
// in the primary clock domain, so no alignment is needed.
func New(m *model.Model, data []byte, _ bool) *Importer {
	return &Importer{
		model:  m,
		data:   data,
		states: make(map[ptid]*threadState),
	}
}

// ImportEvents decodes and processes every event, then autocloses
// whatever is still open. Undecodable input is a hard error; malformed
// individual events are soft errors.
func (im *Importer) ImportEvents() error {
	events, err := decodeEvents(im.data)
	if err != nil {
		return err
	}
	for i := range events {
		im.processEvent(&events[i])
	}
	if im.hasOpenSlices() {
		if err := im.autoCloseOpenSlices(); err != nil {
			return err
		}
	}
	return nil
}

// decodeEvents parses the raw trace, repairing a truncated array tail
// first: producers are routinely killed mid-write, leaving an array
// that never got its closing bracket.
func decodeEvents(data []byte) ([]traceEvent, error) {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		data = repairTruncatedArray(data)
		var events []traceEvent
		if err := sonic.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("malformed trace-event array: %w", err)
		}
		return events, nil
	}
	var c eventContainer
	if err := sonic.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("malformed trace-event object: %w", err)
	}
	if c.TraceEvents == nil {
		return nil, fmt.Errorf("trace-event object has no traceEvents array")
	}
	return c.TraceEvents, nil
}

// repairTruncatedArray appends the missing closing bracket when the
// tail lacks one, tolerating up to two trailing whitespace or newline
// characters after a bracket that is present.
func repairTruncatedArray(data []byte) []byte {
	for i, n := 0, len(data); i < 3 && n-1-i >= 0; i++ {
		switch c := data[n-1-i]; {
		case c == ']':
			return data
		case c != ' ' && c != '\t' && c != '\n' && c != '\r':
			return append(append([]byte(nil), data...), ']')
		}
	}
	return append(append([]byte(nil), data...), ']')
}

func (im *Importer) processEvent(e *traceEvent) {
	switch e.Ph {
	case "B":
		im.processBegin(e)
	case "E":
		im.processEnd(e)
	case "I":
		// An instant is a begin immediately followed by its end at the
		// same timestamp.
		im.processBegin(e)
		im.processEnd(e)
	case "C":
		im.processCounter(e)
	case "M":
		im.processMetadata(e)
	default:
		im.model.AddImportError(fmt.Sprintf("unrecognized event phase %q (%s)", e.Ph, e.Name))
	}
}

func (im *Importer) processBegin(e *traceEvent) {
	state := im.getOrCreateState(e.Pid, e.Tid)
	slice := model.NewSlice(e.Name, model.StringColorID(e.Name), e.Ts/1000, e.Args)

	if isNonNested(e.Args) {
		key := nonNestedKey(e.Name, e.Args)
		if _, open := state.openNonNested[key]; open {
			im.model.AddImportError(fmt.Sprintf("non-nested event %q is already open", key))
			return
		}
		state.openNonNested[key] = slice
		return
	}
	state.openSlices = append(state.openSlices, slice)
}

func (im *Importer) processEnd(e *traceEvent) {
	state := im.getOrCreateState(e.Pid, e.Tid)
	ts := e.Ts / 1000

	if isNonNested(e.Args) {
		key := nonNestedKey(e.Name, e.Args)
		slice, open := state.openNonNested[key]
		if !open {
			// unmatched end, dropped
			return
		}
		delete(state.openNonNested, key)
		slice.Duration = ts - slice.Start
		im.thread(e.Pid, e.Tid).AddNonNestedSlice(slice)
		return
	}

	if len(state.openSlices) == 0 {
		// unmatched end, dropped
		return
	}
	slice := state.openSlices[len(state.openSlices)-1]
	state.openSlices = state.openSlices[:len(state.openSlices)-1]
	slice.Duration = ts - slice.Start
	mergeArgs(slice, e.Args)
	im.placeClosedSlice(state, e.Pid, e.Tid, slice)
}

// placeClosedSlice puts a closed nested slice on the subrow matching
// its depth at close time and links it as a child of the slice that is
// now on top of the stack.
func (im *Importer) placeClosedSlice(state *threadState, pid, tid int, slice *model.Slice) {
	depth := len(state.openSlices)
	if depth > 0 {
		parent := state.openSlices[depth-1]
		parent.SubSlices = append(parent.SubSlices, slice)
	}
	im.thread(pid, tid).AppendSlice(depth, slice)
}

func (im *Importer) processCounter(e *traceEvent) {
	name := e.Name
	if e.ID != nil {
		name = fmt.Sprintf("%s[%v]", e.Name, e.ID)
	}
	proc := im.model.GetOrCreateProcess(e.Pid)
	counter := proc.GetOrCreateCounter(e.Cat, name)

	if counter.NumSeries() == 0 {
		for _, seriesName := range sortedKeys(e.Args) {
			counter.AddSeries(seriesName)
		}
		if counter.NumSeries() == 0 {
			im.model.AddImportError(fmt.Sprintf("expected counter %q to have samples", e.Name))
			delete(proc.Counters, counter.ID)
			return
		}
	}

	values := make([]float64, 0, counter.NumSeries())
	for _, seriesName := range counter.SeriesNames {
		values = append(values, numericArg(e.Args[seriesName]))
	}
	counter.AppendSample(e.Ts/1000, values...)
}

func (im *Importer) processMetadata(e *traceEvent) {
	if e.Name != "thread_name" {
		im.model.AddImportError(fmt.Sprintf("unrecognized metadata name %q", e.Name))
		return
	}
	name, _ := e.Args["name"].(string)
	im.thread(e.Pid, e.Tid).Name = name
}

func (im *Importer) hasOpenSlices() bool {
	for _, state := range im.states {
		if len(state.openSlices) > 0 || len(state.openNonNested) > 0 {
			return true
		}
	}
	return false
}

// autoCloseOpenSlices closes every slice that never saw its end event.
// All of them end at one global maximum timestamp, computed from the
// model's current bound and the open slices themselves, and are marked
// didNotFinish; placement is exactly as for a normal close.
func (im *Importer) autoCloseOpenSlices() error {
	if err := im.model.UpdateBounds(); err != nil {
		return err
	}
	bounds := im.model.Bounds
	for _, state := range im.states {
		for _, slice := range state.openSlices {
			addOpenSliceBounds(&bounds, slice)
		}
		for _, slice := range state.openNonNested {
			addOpenSliceBounds(&bounds, slice)
		}
	}
	maxTS := bounds.Max

	for _, key := range im.sortedStateKeys() {
		state := im.states[key]
		for len(state.openSlices) > 0 {
			slice := state.openSlices[len(state.openSlices)-1]
			state.openSlices = state.openSlices[:len(state.openSlices)-1]
			slice.Duration = maxTS - slice.Start
			slice.DidNotFinish = true
			im.placeClosedSlice(state, key.pid, key.tid, slice)
		}
		for _, nnKey := range sortedKeys(state.openNonNested) {
			slice := state.openNonNested[nnKey]
			delete(state.openNonNested, nnKey)
			slice.Duration = maxTS - slice.Start
			slice.DidNotFinish = true
			im.thread(key.pid, key.tid).AddNonNestedSlice(slice)
		}
	}
	return nil
}

func addOpenSliceBounds(bounds *model.Bounds, slice *model.Slice) {
	bounds.AddValue(slice.Start)
	for _, sub := range slice.SubSlices {
		bounds.AddValue(sub.End())
	}
}

func (im *Importer) sortedStateKeys() []ptid {
	keys := make([]ptid, 0, len(im.states))
	for key := range im.states {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pid != keys[j].pid {
			return keys[i].pid < keys[j].pid
		}
		return keys[i].tid < keys[j].tid
	})
	return keys
}

func (im *Importer) getOrCreateState(pid, tid int) *threadState {
	key := ptid{pid: pid, tid: tid}
	state, ok := im.states[key]
	if !ok {
		state = &threadState{openNonNested: make(map[string]*model.Slice)}
		im.states[key] = state
	}
	return state
}

func (im *Importer) thread(pid, tid int) *model.Thread {
	return im.model.GetOrCreateProcess(pid).GetOrCreateThread(tid)
}

// isNonNested reports whether an event opted out of stack nesting.
func isNonNested(args map[string]any) bool {
	switch v := args["ui-nest"].(type) {
	case string:
		return v == "0"
	case float64:
		return v == 0
	default:
		return false
	}
}

// nonNestedKey builds the composite identity of a non-nested slice:
// the event name plus every argument value, in stable key order.
func nonNestedKey(name string, args map[string]any) string {
	var b strings.Builder
	b.WriteString(name)
	for _, k := range sortedKeys(args) {
		fmt.Fprintf(&b, ";%v", args[k])
	}
	return b.String()
}

func mergeArgs(slice *model.Slice, args map[string]any) {
	if len(args) == 0 {
		return
	}
	if slice.Args == nil {
		slice.Args = make(map[string]any, len(args))
	}
	for k, v := range args {
		slice.Args[k] = v
	}
}

func numericArg(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
